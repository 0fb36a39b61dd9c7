package scp

import "encoding/binary"

// buildPart10 wraps a received data set in a DICOM Part 10 envelope:
// 128-byte preamble, "DICM" magic and an explicit VR little endian file
// meta group describing the object and its transfer syntax. Objects
// arrive over the association as bare data sets, so this is what makes
// the stored file readable by ordinary DICOM tooling.
func buildPart10(sopClassUID, sopInstanceUID, transferSyntaxUID string, dataset []byte) []byte {
	var meta []byte
	meta = appendMetaOB(meta, 0x0001, []byte{0x00, 0x01})
	meta = appendMetaUID(meta, 0x0002, sopClassUID)
	meta = appendMetaUID(meta, 0x0003, sopInstanceUID)
	meta = appendMetaUID(meta, 0x0010, transferSyntaxUID)
	meta = appendMetaUID(meta, 0x0012, implementationClassUID)
	meta = appendMetaShort(meta, 0x0013, "SH", padSpace(implementationVersionName))

	out := make([]byte, 0, 132+12+len(meta)+len(dataset))
	out = append(out, make([]byte, 128)...)
	out = append(out, 'D', 'I', 'C', 'M')

	// (0002,0000) UL FileMetaInformationGroupLength covers everything
	// between itself and the data set.
	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(len(meta)))
	out = appendMetaShort(out, 0x0000, "UL", groupLength)

	out = append(out, meta...)
	return append(out, dataset...)
}

// appendMetaShort writes an explicit VR element with the 16-bit length
// form used by UI, UL and SH.
func appendMetaShort(buf []byte, element uint16, vr string, value []byte) []byte {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint16(header[0:], 0x0002)
	binary.LittleEndian.PutUint16(header[2:], element)
	header[4] = vr[0]
	header[5] = vr[1]
	binary.LittleEndian.PutUint16(header[6:], uint16(len(value)))
	buf = append(buf, header...)
	return append(buf, value...)
}

// appendMetaOB writes an explicit VR OB element, which carries two
// reserved bytes and a 32-bit length.
func appendMetaOB(buf []byte, element uint16, value []byte) []byte {
	header := make([]byte, 12)
	binary.LittleEndian.PutUint16(header[0:], 0x0002)
	binary.LittleEndian.PutUint16(header[2:], element)
	header[4] = 'O'
	header[5] = 'B'
	binary.LittleEndian.PutUint32(header[8:], uint32(len(value)))
	buf = append(buf, header...)
	return append(buf, value...)
}

func appendMetaUID(buf []byte, element uint16, uid string) []byte {
	raw := []byte(uid)
	if len(raw)%2 != 0 {
		raw = append(raw, 0x00)
	}
	return appendMetaShort(buf, element, "UI", raw)
}

func padSpace(s string) []byte {
	raw := []byte(s)
	if len(raw)%2 != 0 {
		raw = append(raw, ' ')
	}
	return raw
}
