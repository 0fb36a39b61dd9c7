package scp

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"

	"dicom-scp-server/fs"
	"dicom-scp-server/ingest"
)

// State is the lifecycle phase of a transfer session.
type State int32

const (
	StateConnecting State = iota
	StateNegotiating
	StateIdle
	StateReceiving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Config holds the negotiation parameters of the service class
// provider. A Session keeps the Config value it was built with, so
// changing the server's Config never affects associations already in
// flight.
type Config struct {
	// AETitle is the application entity name announced to peers.
	AETitle string

	// MaxPDULength is advertised to the peer during negotiation.
	MaxPDULength uint32

	// TransferSyntaxes is the accepted encodings in preference order.
	TransferSyntaxes []string

	// AllowedCallingAEs limits which peers may associate when
	// EnforceAEFilter is set.
	EnforceAEFilter   bool
	AllowedCallingAEs []string
}

func (c *Config) applyDefaults() {
	if c.AETitle == "" {
		c.AETitle = "DICOM_SCP"
	}
	if c.MaxPDULength == 0 {
		c.MaxPDULength = 16384
	}
	if len(c.TransferSyntaxes) == 0 {
		c.TransferSyntaxes = DefaultTransferSyntaxes
	}
}

// Session serves one association: it negotiates capabilities, then
// answers C-ECHO and C-STORE requests until the peer releases or the
// transport fails.
type Session struct {
	conn   net.Conn
	cfg    Config
	store  *fs.ObjectStore
	queue  *ingest.Queue
	logger logrus.FieldLogger

	state      int32
	contexts   map[byte]*acceptedContext
	peerMaxPDU uint32

	// Reassembly buffers for the message currently in flight.
	command    *dimseMessage
	commandCtx byte
	commandBuf bytes.Buffer
	datasetBuf bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an accepted connection. Run drives it.
func NewSession(conn net.Conn, cfg Config, store *fs.ObjectStore, queue *ingest.Queue, logger logrus.FieldLogger) *Session {
	cfg.applyDefaults()
	return &Session{
		conn:   conn,
		cfg:    cfg,
		store:  store,
		queue:  queue,
		logger: logger,
		state:  int32(StateConnecting),
	}
}

func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(state State) {
	atomic.StoreInt32(&s.state, int32(state))
}

// Run answers the given association request and serves DIMSE traffic
// until release, abort or transport failure. The connection is closed
// on return.
func (s *Session) Run(req *associateRequest) error {
	defer s.Close()

	s.setState(StateNegotiating)
	s.contexts = negotiateContexts(req, s.cfg.TransferSyntaxes)
	s.peerMaxPDU = req.maxPDULength
	if s.peerMaxPDU == 0 {
		s.peerMaxPDU = s.cfg.MaxPDULength
	}

	ac := encodeAssociateAC(req, s.contexts, s.cfg.MaxPDULength)
	if err := writePDU(s.conn, pduAssociateAC, ac); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"calling_ae": req.callingAE,
		"contexts":   len(req.contexts),
		"accepted":   s.acceptedCount(),
	}).Info("association established")
	s.setState(StateIdle)

	for {
		p, err := readPDU(s.conn)
		if err != nil {
			s.logger.WithError(err).Warn("association transport failed")
			return err
		}

		switch p.Type {
		case pduPDataTF:
			pdvs, err := parsePDataTF(p.Data)
			if err != nil {
				s.logger.WithError(err).Warn("malformed p-data-tf")
				s.abort()
				return err
			}
			for i := range pdvs {
				if err := s.handlePDV(&pdvs[i]); err != nil {
					s.abort()
					return err
				}
			}
		case pduReleaseRQ:
			err := writePDU(s.conn, pduReleaseRP, []byte{0, 0, 0, 0})
			s.logger.Info("association released")
			return err
		case pduAbort:
			s.logger.Info("association aborted by peer")
			return nil
		default:
			s.logger.WithField("pdu_type", p.Type).Warn("unexpected pdu")
			s.abort()
			return errors.New("unexpected pdu during data transfer")
		}
	}
}

func (s *Session) acceptedCount() int {
	n := 0
	for _, ctx := range s.contexts {
		if ctx.accepted() {
			n++
		}
	}
	return n
}

// handlePDV accumulates message fragments and dispatches the request
// once the last fragment of its data (or of a command carrying no data
// set) has arrived.
func (s *Session) handlePDV(p *pdv) error {
	ctx := s.contexts[p.contextID]
	if ctx == nil || !ctx.accepted() {
		return errors.New("pdv on unaccepted presentation context")
	}

	if p.command {
		s.commandCtx = p.contextID
		s.commandBuf.Write(p.data)
		if !p.last {
			return nil
		}

		command, err := parseDIMSECommand(s.commandBuf.Bytes())
		s.commandBuf.Reset()
		if err != nil {
			return err
		}
		s.command = command

		if command.hasDataset() {
			s.setState(StateReceiving)
			return nil
		}
		return s.dispatch(ctx, nil)
	}

	if s.command == nil || p.contextID != s.commandCtx {
		return errors.New("data set fragment without pending command")
	}
	s.datasetBuf.Write(p.data)
	if !p.last {
		return nil
	}

	dataset := make([]byte, s.datasetBuf.Len())
	copy(dataset, s.datasetBuf.Bytes())
	s.datasetBuf.Reset()
	return s.dispatch(ctx, dataset)
}

func (s *Session) dispatch(ctx *acceptedContext, dataset []byte) error {
	command := s.command
	s.command = nil
	defer s.setState(StateIdle)

	switch command.CommandField {
	case cEchoRQ:
		s.logger.Debug("c-echo request")
		return s.sendResponse(ctx.id, &dimseMessage{
			CommandField:              cEchoRSP,
			AffectedSOPClassUID:       command.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: command.MessageID,
			CommandDataSetType:        noDataset,
			Status:                    StatusSuccess,
		})
	case cStoreRQ:
		status := s.handleStore(ctx, command, dataset)
		return s.sendResponse(ctx.id, &dimseMessage{
			CommandField:              cStoreRSP,
			AffectedSOPClassUID:       command.AffectedSOPClassUID,
			AffectedSOPInstanceUID:    command.AffectedSOPInstanceUID,
			MessageIDBeingRespondedTo: command.MessageID,
			CommandDataSetType:        noDataset,
			Status:                    status,
		})
	default:
		s.logger.WithField("command_field", command.CommandField).Warn("unsupported dimse operation")
		return s.sendResponse(ctx.id, &dimseMessage{
			CommandField:              command.CommandField | 0x8000,
			MessageIDBeingRespondedTo: command.MessageID,
			CommandDataSetType:        noDataset,
			Status:                    StatusUnrecognizedOperation,
		})
	}
}

// handleStore persists a received object and reports the DIMSE status
// for the response. The object is written to disk first; its metadata
// is queued for the batch writer only after the write succeeds. A full
// ingest queue or a closed one never fails the transfer, the object is
// already safe on disk.
func (s *Session) handleStore(ctx *acceptedContext, command *dimseMessage, dataset []byte) uint16 {
	logger := s.logger.WithField("sop_instance_uid", command.AffectedSOPInstanceUID)

	if len(dataset) == 0 {
		logger.Warn("c-store without data set")
		return StatusProcessingFailure
	}

	fileBytes := buildPart10(command.AffectedSOPClassUID, command.AffectedSOPInstanceUID, ctx.transferSyntax, dataset)

	parsed, err := dicom.Parse(bytes.NewReader(fileBytes), int64(len(fileBytes)), nil)
	if err != nil {
		logger.WithError(err).Warn("received object does not parse")
		return StatusProcessingFailure
	}

	records, err := ingest.ExtractRecordSet(parsed)
	if err != nil {
		logger.WithError(err).Warn("received object misses identifying attributes")
		return StatusProcessingFailure
	}

	path, err := s.store.Put(
		records.Study.StudyInstanceUID,
		records.Series.SeriesInstanceUID,
		records.Instance.SOPInstanceUID,
		fileBytes,
	)
	if errors.Is(err, fs.ErrDuplicateObject) {
		logger.Info("duplicate sop instance refused")
		return StatusDuplicateSOPInstance
	}
	if err != nil {
		logger.WithError(err).Error("object write failed")
		return StatusProcessingFailure
	}

	records.Instance.FilePath = path
	if !s.queue.Enqueue(records) {
		logger.Warn("ingest queue closed, metadata not recorded")
	}

	logger.WithField("bytes", len(fileBytes)).Info("object stored")
	return StatusSuccess
}

func (s *Session) sendResponse(contextID byte, msg *dimseMessage) error {
	encoded := encodeDIMSECommand(msg)
	for _, body := range encodePDataTF(contextID, true, encoded, s.peerMaxPDU) {
		if err := writePDU(s.conn, pduPDataTF, body); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) abort() {
	_ = writePDU(s.conn, pduAbort, encodeAbort())
}

// Close terminates the session. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
