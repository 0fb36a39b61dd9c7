package scp

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"dicom-scp-server/fs"
	"dicom-scp-server/ingest"
)

// Server accepts associations from modalities and runs one Session per
// connection.
type Server struct {
	cfg    Config
	store  *fs.ObjectStore
	queue  *ingest.Queue
	logger logrus.FieldLogger

	allowedAEs map[string]bool

	wg sync.WaitGroup
}

// NewServer builds a Server. The Config is copied; later mutation by
// the caller has no effect.
func NewServer(cfg Config, store *fs.ObjectStore, queue *ingest.Queue, logger logrus.FieldLogger) *Server {
	cfg.applyDefaults()

	server := &Server{
		cfg:    cfg,
		store:  store,
		queue:  queue,
		logger: logger,
	}
	if cfg.EnforceAEFilter {
		server.allowedAEs = make(map[string]bool, len(cfg.AllowedCallingAEs))
		for _, title := range cfg.AllowedCallingAEs {
			server.allowedAEs[title] = true
		}
	}
	return server
}

// ListenAndServe listens on address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight associations to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.WithFields(logrus.Fields{
		"ae_title": s.cfg.AETitle,
		"address":  listener.Addr().String(),
	}).Info("scp listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				s.logger.Info("scp stopped")
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn reads the association request and applies the calling AE
// filter before a Session exists. Refused peers get A-ASSOCIATE-RJ and
// never reach negotiation.
func (s *Server) handleConn(conn net.Conn) {
	logger := s.logger.WithField("remote", conn.RemoteAddr().String())

	p, err := readPDU(conn)
	if err != nil {
		logger.WithError(err).Warn("connection dropped before association")
		conn.Close()
		return
	}
	if p.Type != pduAssociateRQ {
		logger.WithField("pdu_type", p.Type).Warn("expected associate request")
		_ = writePDU(conn, pduAbort, encodeAbort())
		conn.Close()
		return
	}

	req, err := parseAssociateRQ(p.Data)
	if err != nil {
		logger.WithError(err).Warn("malformed associate request")
		_ = writePDU(conn, pduAbort, encodeAbort())
		conn.Close()
		return
	}

	if s.allowedAEs != nil && !s.allowedAEs[req.callingAE] {
		logger.WithField("calling_ae", req.callingAE).Warn("calling ae title refused")
		_ = writePDU(conn, pduAssociateRJ,
			encodeAssociateRJ(rejectedPermanent, rejectSourceServiceUser, rejectCallingAEUnknown))
		conn.Close()
		return
	}

	session := NewSession(conn, s.cfg, s.store, s.queue, logger.WithField("calling_ae", req.callingAE))
	if err := session.Run(req); err != nil {
		logger.WithError(err).Debug("session ended with error")
	}
}
