package scp

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Upper layer PDU types.
const (
	pduAssociateRQ byte = 0x01
	pduAssociateAC byte = 0x02
	pduAssociateRJ byte = 0x03
	pduPDataTF     byte = 0x04
	pduReleaseRQ   byte = 0x05
	pduReleaseRP   byte = 0x06
	pduAbort       byte = 0x07
)

// Variable item types inside association PDUs.
const (
	itemApplicationContext    byte = 0x10
	itemPresentationContextRQ byte = 0x20
	itemPresentationContextAC byte = 0x21
	itemAbstractSyntax        byte = 0x30
	itemTransferSyntax        byte = 0x40
	itemUserInformation       byte = 0x50
	subItemMaxLength          byte = 0x51
	subItemImplementationUID  byte = 0x52
	subItemVersionName        byte = 0x55
)

// Presentation context negotiation results.
const (
	ctxAccepted             byte = 0x00
	ctxRejectAbstractSyntax byte = 0x03
	ctxRejectTransferSyntax byte = 0x04
)

// A-ASSOCIATE-RJ fields for a calling AE title the node refuses.
const (
	rejectedPermanent       byte = 0x01
	rejectSourceServiceUser byte = 0x01
	rejectCallingAEUnknown  byte = 0x03
)

const protocolVersion uint16 = 0x0001

// Ceiling on inbound PDU size, independent of what we advertise. A
// length beyond this is a broken or hostile peer.
const maxInboundPDULength = 16 * 1024 * 1024

// pdu is one upper layer protocol data unit.
type pdu struct {
	Type byte
	Data []byte
}

func readPDU(r io.Reader) (*pdu, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[2:])
	if length > maxInboundPDULength {
		return nil, fmt.Errorf("pdu length %d exceeds limit", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return &pdu{Type: header[0], Data: data}, nil
}

func writePDU(w io.Writer, typ byte, data []byte) error {
	header := make([]byte, 6)
	header[0] = typ
	binary.BigEndian.PutUint32(header[2:], uint32(len(data)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// proposedContext is one presentation context offered by the peer.
type proposedContext struct {
	id               byte
	abstractSyntax   string
	transferSyntaxes []string
}

// associateRequest is the decoded A-ASSOCIATE-RQ.
type associateRequest struct {
	calledAE     string
	callingAE    string
	maxPDULength uint32
	contexts     []proposedContext
}

// parseAssociateRQ decodes the fixed header and variable items of an
// A-ASSOCIATE-RQ PDU body.
func parseAssociateRQ(data []byte) (*associateRequest, error) {
	if len(data) < 68 {
		return nil, fmt.Errorf("associate request too short: %d bytes", len(data))
	}

	req := &associateRequest{
		calledAE:  strings.TrimSpace(trimUID(string(data[4:20]))),
		callingAE: strings.TrimSpace(trimUID(string(data[20:36]))),
	}

	offset := 68
	for offset+4 <= len(data) {
		itemType := data[offset]
		itemLength := int(binary.BigEndian.Uint16(data[offset+2:]))
		offset += 4
		if offset+itemLength > len(data) {
			return nil, fmt.Errorf("item 0x%02X overruns associate request", itemType)
		}
		item := data[offset : offset+itemLength]
		offset += itemLength

		switch itemType {
		case itemPresentationContextRQ:
			ctx, err := parsePresentationContextRQ(item)
			if err != nil {
				return nil, err
			}
			req.contexts = append(req.contexts, *ctx)
		case itemUserInformation:
			parseUserInformation(item, req)
		}
	}

	if len(req.contexts) == 0 {
		return nil, fmt.Errorf("associate request proposes no presentation contexts")
	}
	return req, nil
}

func parsePresentationContextRQ(item []byte) (*proposedContext, error) {
	if len(item) < 4 {
		return nil, fmt.Errorf("presentation context item too short")
	}
	ctx := &proposedContext{id: item[0]}

	offset := 4
	for offset+4 <= len(item) {
		subType := item[offset]
		subLength := int(binary.BigEndian.Uint16(item[offset+2:]))
		offset += 4
		if offset+subLength > len(item) {
			return nil, fmt.Errorf("sub-item 0x%02X overruns presentation context", subType)
		}
		value := string(item[offset : offset+subLength])
		offset += subLength

		switch subType {
		case itemAbstractSyntax:
			ctx.abstractSyntax = trimUID(value)
		case itemTransferSyntax:
			ctx.transferSyntaxes = append(ctx.transferSyntaxes, trimUID(value))
		}
	}

	if ctx.abstractSyntax == "" {
		return nil, fmt.Errorf("presentation context %d carries no abstract syntax", ctx.id)
	}
	return ctx, nil
}

func parseUserInformation(item []byte, req *associateRequest) {
	offset := 0
	for offset+4 <= len(item) {
		subType := item[offset]
		subLength := int(binary.BigEndian.Uint16(item[offset+2:]))
		offset += 4
		if offset+subLength > len(item) {
			return
		}
		if subType == subItemMaxLength && subLength == 4 {
			req.maxPDULength = binary.BigEndian.Uint32(item[offset:])
		}
		offset += subLength
	}
}

func trimUID(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

// acceptedContext is the negotiation outcome for one proposed context.
type acceptedContext struct {
	id             byte
	result         byte
	abstractSyntax string
	transferSyntax string
}

func (c *acceptedContext) accepted() bool {
	return c.result == ctxAccepted
}

// negotiateContexts applies the node's capability policy to every
// proposed context. Verification and storage SOP classes are served;
// anything else is rejected per context without failing the
// association. The transfer syntax is the first entry of our own
// preference order that the peer proposed, so lossless encodings win
// whenever the peer offers one.
func negotiateContexts(req *associateRequest, preferences []string) map[byte]*acceptedContext {
	out := make(map[byte]*acceptedContext, len(req.contexts))

	for _, proposed := range req.contexts {
		ctx := &acceptedContext{
			id:             proposed.id,
			abstractSyntax: proposed.abstractSyntax,
		}
		out[proposed.id] = ctx

		if proposed.abstractSyntax != VerificationSOPClass && !IsStorageSOPClass(proposed.abstractSyntax) {
			ctx.result = ctxRejectAbstractSyntax
			continue
		}

		ctx.result = ctxRejectTransferSyntax
		for _, preferred := range preferences {
			if containsUID(proposed.transferSyntaxes, preferred) {
				ctx.result = ctxAccepted
				ctx.transferSyntax = preferred
				break
			}
		}
	}

	return out
}

func containsUID(uids []string, uid string) bool {
	for _, u := range uids {
		if u == uid {
			return true
		}
	}
	return false
}

// encodeAssociateAC renders the A-ASSOCIATE-AC body answering req.
// Every proposed context appears in the answer with its result code,
// accepted or not. The AE title fields echo the request, as the
// standard requires.
func encodeAssociateAC(req *associateRequest, contexts map[byte]*acceptedContext, maxPDULength uint32) []byte {
	var body []byte

	fixed := make([]byte, 68)
	binary.BigEndian.PutUint16(fixed[0:], protocolVersion)
	copy(fixed[4:20], paddedAETitle(req.calledAE))
	copy(fixed[20:36], paddedAETitle(req.callingAE))
	body = append(body, fixed...)

	body = appendItem(body, itemApplicationContext, []byte(ApplicationContextUID))

	for _, proposed := range req.contexts {
		ctx := contexts[proposed.id]
		if ctx == nil {
			continue
		}

		item := []byte{ctx.id, 0x00, ctx.result, 0x00}
		transferSyntax := ctx.transferSyntax
		if transferSyntax == "" && len(proposed.transferSyntaxes) > 0 {
			// Rejected contexts still carry a transfer syntax
			// sub-item; echo the peer's first proposal.
			transferSyntax = proposed.transferSyntaxes[0]
		}
		if transferSyntax == "" {
			transferSyntax = ImplicitVRLittleEndian
		}
		item = appendItem(item, itemTransferSyntax, []byte(transferSyntax))
		body = appendItem(body, itemPresentationContextAC, item)
	}

	var user []byte
	maxLength := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLength, maxPDULength)
	user = appendItem(user, subItemMaxLength, maxLength)
	user = appendItem(user, subItemImplementationUID, []byte(implementationClassUID))
	user = appendItem(user, subItemVersionName, []byte(implementationVersionName))
	body = appendItem(body, itemUserInformation, user)

	return body
}

func appendItem(buf []byte, itemType byte, value []byte) []byte {
	header := make([]byte, 4)
	header[0] = itemType
	binary.BigEndian.PutUint16(header[2:], uint16(len(value)))
	buf = append(buf, header...)
	return append(buf, value...)
}

func paddedAETitle(title string) []byte {
	out := []byte("                ")
	copy(out, title)
	return out
}

func encodeAssociateRJ(result, source, reason byte) []byte {
	return []byte{0x00, result, source, reason}
}

func encodeAbort() []byte {
	// Source 2: service provider, reason 0: unspecified.
	return []byte{0x00, 0x00, 0x02, 0x00}
}

// pdv is one presentation data value inside a P-DATA-TF PDU.
type pdv struct {
	contextID byte
	command   bool
	last      bool
	data      []byte
}

// parsePDataTF decodes every PDV carried by the PDU. The message
// control header's low bit marks command versus data set fragments, the
// second bit marks the last fragment.
func parsePDataTF(data []byte) ([]pdv, error) {
	var out []pdv

	offset := 0
	for offset+6 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset:]))
		if length < 2 || offset+4+length > len(data) {
			return nil, fmt.Errorf("pdv length %d overruns pdu", length)
		}
		control := data[offset+5]
		out = append(out, pdv{
			contextID: data[offset+4],
			command:   control&0x01 != 0,
			last:      control&0x02 != 0,
			data:      data[offset+6 : offset+4+length],
		})
		offset += 4 + length
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("p-data-tf carries no pdv")
	}
	return out, nil
}

// encodePDataTF fragments a message into P-DATA-TF PDU bodies that fit
// the peer's maximum PDU length.
func encodePDataTF(contextID byte, command bool, data []byte, maxPDULength uint32) [][]byte {
	// PDU body overhead per PDV: 4 length + 1 context + 1 control.
	chunkSize := int(maxPDULength) - 6
	if chunkSize < 1 {
		chunkSize = 1
	}

	var out [][]byte
	for offset := 0; offset < len(data) || len(out) == 0; offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		var control byte
		if command {
			control |= 0x01
		}
		if end == len(data) {
			control |= 0x02
		}

		body := make([]byte, 6, 6+len(chunk))
		binary.BigEndian.PutUint32(body[0:], uint32(len(chunk)+2))
		body[4] = contextID
		body[5] = control
		out = append(out, append(body, chunk...))
	}
	return out
}
