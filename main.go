package main

import "dicom-scp-server/cmd"

func main() {
	cmd.Execute()
}
