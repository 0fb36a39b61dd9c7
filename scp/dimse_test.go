package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDIMSECommandRoundTrip(t *testing.T) {
	msg := &dimseMessage{
		CommandField:              cStoreRSP,
		AffectedSOPClassUID:       ctImageStorage,
		AffectedSOPInstanceUID:    "1.2.3.4.5",
		MessageIDBeingRespondedTo: 7,
		CommandDataSetType:        noDataset,
		Status:                    StatusDuplicateSOPInstance,
	}

	parsed, err := parseDIMSECommand(encodeDIMSECommand(msg))
	require.NoError(t, err)

	assert.Equal(t, cStoreRSP, parsed.CommandField)
	assert.Equal(t, ctImageStorage, parsed.AffectedSOPClassUID)
	assert.Equal(t, "1.2.3.4.5", parsed.AffectedSOPInstanceUID)
	assert.Equal(t, uint16(7), parsed.MessageIDBeingRespondedTo)
	assert.Equal(t, StatusDuplicateSOPInstance, parsed.Status)
	assert.False(t, parsed.hasDataset())
}

func TestParseDIMSECommandSkipsUnknownElements(t *testing.T) {
	var raw []byte
	raw = appendUint16Element(raw, tagCommandField, cEchoRQ)
	raw = appendUint16Element(raw, 0x0700, 0x0002) // priority
	raw = appendUint16Element(raw, tagMessageID, 12)
	raw = appendUint16Element(raw, tagCommandDataSetType, noDataset)

	parsed, err := parseDIMSECommand(raw)
	require.NoError(t, err)
	assert.Equal(t, cEchoRQ, parsed.CommandField)
	assert.Equal(t, uint16(12), parsed.MessageID)
}

func TestParseDIMSECommandTruncated(t *testing.T) {
	raw := appendUIDElement(nil, tagAffectedSOPClassUID, VerificationSOPClass)
	raw = raw[:len(raw)-4]

	_, err := parseDIMSECommand(raw)
	assert.Error(t, err)
}

func TestParseDIMSECommandMissingCommandField(t *testing.T) {
	raw := appendUint16Element(nil, tagMessageID, 1)

	_, err := parseDIMSECommand(raw)
	assert.Error(t, err)
}

func TestDatasetPresenceFlag(t *testing.T) {
	withData := &dimseMessage{CommandDataSetType: 0x0000}
	assert.True(t, withData.hasDataset())

	withoutData := &dimseMessage{CommandDataSetType: noDataset}
	assert.False(t, withoutData.hasDataset())
}
