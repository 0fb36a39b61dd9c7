package scp

import "strings"

// Application context for the DICOM upper layer protocol.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// VerificationSOPClass is the C-ECHO no-op service.
const VerificationSOPClass = "1.2.840.10008.1.1"

// Transfer syntax UIDs (DICOM PS3.5 chapter 8).
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	JPEGBaseline8Bit       = "1.2.840.10008.1.2.4.50"
	JPEGLosslessSV1        = "1.2.840.10008.1.2.4.70"
	JPEG2000Lossless       = "1.2.840.10008.1.2.4.90"
	JPEG2000               = "1.2.840.10008.1.2.4.91"
	RLELossless            = "1.2.840.10008.1.2.5"
)

// DefaultTransferSyntaxes is the node's encoding preference: lossless
// variants first, lossy after, uncompressed fallback last.
var DefaultTransferSyntaxes = []string{
	JPEGLosslessSV1,
	JPEG2000Lossless,
	RLELossless,
	JPEGBaseline8Bit,
	JPEG2000,
	ExplicitVRLittleEndian,
	ImplicitVRLittleEndian,
}

// All storage SOP classes (CT Image Storage, MR Image Storage, ...)
// share this UID root.
const storageSOPClassRoot = "1.2.840.10008.5.1.4.1.1."

// IsStorageSOPClass reports whether the abstract syntax names an object
// storage service (C-STORE).
func IsStorageSOPClass(uid string) bool {
	return strings.HasPrefix(uid, storageSOPClassRoot)
}

const (
	implementationClassUID    = "1.2.826.0.1.3680043.10.1521.1"
	implementationVersionName = "DICOMSCP_10"
)
