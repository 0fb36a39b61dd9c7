package scp

import (
	"encoding/binary"
	"fmt"
)

// DIMSE command field values.
const (
	cStoreRQ  uint16 = 0x0001
	cStoreRSP uint16 = 0x8001
	cEchoRQ   uint16 = 0x0030
	cEchoRSP  uint16 = 0x8030
)

// DIMSE status codes returned to peers.
const (
	StatusSuccess               uint16 = 0x0000
	StatusProcessingFailure     uint16 = 0x0110
	StatusDuplicateSOPInstance  uint16 = 0x0111
	StatusUnrecognizedOperation uint16 = 0x0211
)

// CommandDataSetType value meaning no data set follows the command.
const noDataset uint16 = 0x0101

// Command group element tags (group 0x0000, implicit VR little endian).
const (
	tagCommandGroupLength        uint16 = 0x0000
	tagAffectedSOPClassUID       uint16 = 0x0002
	tagCommandField              uint16 = 0x0100
	tagMessageID                 uint16 = 0x0110
	tagMessageIDBeingRespondedTo uint16 = 0x0120
	tagCommandDataSetType        uint16 = 0x0800
	tagStatus                    uint16 = 0x0900
	tagAffectedSOPInstanceUID    uint16 = 0x1000
)

// dimseMessage is the decoded command group of a DIMSE message.
type dimseMessage struct {
	CommandField              uint16
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	MessageID                 uint16
	MessageIDBeingRespondedTo uint16
	CommandDataSetType        uint16
	Status                    uint16
}

func (m *dimseMessage) hasDataset() bool {
	return m.CommandDataSetType != noDataset
}

// parseDIMSECommand decodes an implicit VR little endian command group.
// Elements outside the known set are skipped.
func parseDIMSECommand(data []byte) (*dimseMessage, error) {
	msg := &dimseMessage{CommandDataSetType: noDataset}

	offset := 0
	for offset+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[offset:])
		element := binary.LittleEndian.Uint16(data[offset+2:])
		length := binary.LittleEndian.Uint32(data[offset+4:])
		offset += 8

		if uint32(len(data)-offset) < length {
			return nil, fmt.Errorf("command element (%04X,%04X) overruns message", group, element)
		}
		value := data[offset : offset+int(length)]
		offset += int(length)

		if group != 0x0000 {
			continue
		}

		switch element {
		case tagCommandField:
			msg.CommandField = uint16Value(value)
		case tagAffectedSOPClassUID:
			msg.AffectedSOPClassUID = uidValue(value)
		case tagAffectedSOPInstanceUID:
			msg.AffectedSOPInstanceUID = uidValue(value)
		case tagMessageID:
			msg.MessageID = uint16Value(value)
		case tagMessageIDBeingRespondedTo:
			msg.MessageIDBeingRespondedTo = uint16Value(value)
		case tagCommandDataSetType:
			msg.CommandDataSetType = uint16Value(value)
		case tagStatus:
			msg.Status = uint16Value(value)
		}
	}

	if msg.CommandField == 0 {
		return nil, fmt.Errorf("command group carries no command field")
	}
	return msg, nil
}

// encodeDIMSECommand renders the message as an implicit VR little endian
// command group, group length element first.
func encodeDIMSECommand(msg *dimseMessage) []byte {
	var body []byte
	if msg.AffectedSOPClassUID != "" {
		body = appendUIDElement(body, tagAffectedSOPClassUID, msg.AffectedSOPClassUID)
	}
	body = appendUint16Element(body, tagCommandField, msg.CommandField)
	if msg.MessageID != 0 {
		body = appendUint16Element(body, tagMessageID, msg.MessageID)
	}
	if msg.MessageIDBeingRespondedTo != 0 {
		body = appendUint16Element(body, tagMessageIDBeingRespondedTo, msg.MessageIDBeingRespondedTo)
	}
	body = appendUint16Element(body, tagCommandDataSetType, msg.CommandDataSetType)
	body = appendUint16Element(body, tagStatus, msg.Status)
	if msg.AffectedSOPInstanceUID != "" {
		body = appendUIDElement(body, tagAffectedSOPInstanceUID, msg.AffectedSOPInstanceUID)
	}

	out := make([]byte, 0, len(body)+12)
	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(len(body)))
	out = appendElement(out, tagCommandGroupLength, groupLength)
	return append(out, body...)
}

func appendElement(buf []byte, element uint16, value []byte) []byte {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint16(header[0:], 0x0000)
	binary.LittleEndian.PutUint16(header[2:], element)
	binary.LittleEndian.PutUint32(header[4:], uint32(len(value)))
	buf = append(buf, header...)
	return append(buf, value...)
}

func appendUint16Element(buf []byte, element uint16, value uint16) []byte {
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, value)
	return appendElement(buf, element, raw)
}

func appendUIDElement(buf []byte, element uint16, uid string) []byte {
	raw := []byte(uid)
	if len(raw)%2 != 0 {
		raw = append(raw, 0x00)
	}
	return appendElement(buf, element, raw)
}

func uint16Value(value []byte) uint16 {
	if len(value) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(value)
}

func uidValue(value []byte) string {
	for len(value) > 0 && (value[len(value)-1] == 0x00 || value[len(value)-1] == ' ') {
		value = value[:len(value)-1]
	}
	return string(value)
}
