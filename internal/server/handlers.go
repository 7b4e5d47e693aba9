package server

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/reguctl/internal/observability"
	"github.com/danmuck/reguctl/internal/regulator"
	"github.com/danmuck/reguctl/internal/report"
	"github.com/danmuck/reguctl/internal/une"
)

type handlerKey struct {
	sub  une.Subaddress
	code une.Code
}

type handlerFunc func(sess *session, f une.Frame)

// registerHandlers builds the dispatch table. Cabinets answer known codes
// on either subaddress and echo the one the request carried, so every
// handler is registered under both. Anything not in the table is dropped
// without a reply.
func (s *Service) registerHandlers() {
	s.handlers = make(map[handlerKey]handlerFunc)
	register := func(code une.Code, fn handlerFunc) {
		s.handlers[handlerKey{une.SubStatus, code}] = fn
		s.handlers[handlerKey{une.SubPlans, code}] = fn
	}

	register(une.CodeSync, s.handleSync)
	register(une.CodePlanSelect, s.handlePlanSelect)
	register(une.CodePlanOrder, s.handlePlanSelect)
	register(une.CodeStates, s.handleStates)
	register(une.CodeTraffic, s.handleTraffic)
	register(une.CodeModeReport, s.handleModeReportEcho)
	register(une.CodeAlarms, s.handleAlarmsPoll)
	register(une.CodeConfig, s.handleOrderEcho)
	register(une.CodeTables, s.handleOrderEcho)
	register(une.CodeIncompat, s.handleOrderEcho)
	register(une.CodeTimeSet, s.handleOrderEcho)
	register(une.CodeClearAlarms, s.handleOrderEcho)
	register(une.CodeDirectQuery, s.handleDirectQuery)
	register(une.CodeDirectCmd, s.handleDirectCmd)
	register(une.CodeDetectors, s.handleDetectorPoll)
	register(une.CodeDetect, s.handleDetectPoll)
}

// handleToken routes one scanner token: bare control bytes to the control
// handler, framed messages through parse and the dispatch table.
func (s *Service) handleToken(sess *session, tok une.Token) {
	if tok.Raw == nil {
		s.handleControl(sess, tok.Control)
		return
	}
	f, err := une.Parse(tok.Raw)
	if err != nil {
		if errors.Is(err, une.ErrChecksum) {
			observability.RecordChecksumError(s.cfg.Name)
			s.journalEvent(sess.id, "checksum_error", "")
			if s.cfg.StrictChecksum {
				s.sendControl(sess, une.NAK)
			}
			return
		}
		log.Warn().
			Str("regulator", s.cfg.Name).
			Str("session", sess.id).
			Err(err).
			Msg("frame_invalid")
		return
	}
	observability.RecordFrame(s.cfg.Name, "rx", f.Code.String())
	s.journalFrame(sess.id, "rx", f.Code, f.Data)

	h, ok := s.handlers[handlerKey{f.Sub, f.Code}]
	if !ok {
		log.Debug().
			Str("regulator", s.cfg.Name).
			Str("code", f.Code.String()).
			Msg("frame_unhandled")
		return
	}
	h(sess, f)
}

// handleControl answers bare link bytes. DET polls the operating mode;
// ACK and NAK close the loop on our own sends and get no reply.
func (s *Service) handleControl(sess *session, ctrl byte) {
	s.journalControl(sess.id, "rx", ctrl)
	switch ctrl {
	case une.DET:
		s.sendFrame(sess, report.ModeReport(une.SubStatus))
	case une.ACK:
		log.Debug().
			Str("regulator", s.cfg.Name).
			Str("session", sess.id).
			Msg("control_ack")
	case une.NAK:
		observability.RecordNAK(s.cfg.Name, "rx")
		log.Warn().
			Str("regulator", s.cfg.Name).
			Str("session", sess.id).
			Msg("control_nak")
	default:
		log.Debug().
			Str("regulator", s.cfg.Name).
			Str("control", une.ControlName(ctrl)).
			Msg("control_ignored")
	}
}

// handleSync answers the clock poll with the active plan, local time,
// phase and cycle position.
func (s *Service) handleSync(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.Sync(s.state.Snapshot(), f.Sub, time.Now()))
}

// handlePlanSelect serves both plan-selection codes. The data byte is the
// center-facing plan number; an accepted order is confirmed with an empty
// plan-order echo and the status burst follows from the state change. An
// unknown plan is refused with NAK and nothing changes.
func (s *Service) handlePlanSelect(sess *session, f une.Frame) {
	if len(f.Data) == 0 {
		s.sendControl(sess, une.ACK)
		return
	}
	external := int(f.Data[0])
	if err := s.state.SelectPlan(external + 128); err != nil {
		log.Warn().
			Str("regulator", s.cfg.Name).
			Int("plan", external).
			Err(err).
			Msg("plan_select_rejected")
		s.sendControl(sess, une.NAK)
		return
	}
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.EmptyEcho(f.Sub, une.CodePlanOrder))
}

// handleStates applies a representation and command-source order. The
// payload carries three bytes; shorter frames are acknowledged and
// ignored, like the cabinets do.
func (s *Service) handleStates(sess *session, f une.Frame) {
	if len(f.Data) < 3 {
		s.sendControl(sess, une.ACK)
		return
	}
	repr := regulator.Representation(f.Data[0] & 0x03)
	if repr > regulator.ReprColor {
		repr = regulator.ReprColor
	}
	mode := regulator.ModeLocal
	if f.Data[1] == 0x01 || f.Data[2] == 0x03 {
		mode = regulator.ModeCentral
	}
	s.state.SetStates(repr, mode)
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.EmptyEcho(f.Sub, une.CodeStates))
}

func (s *Service) handleTraffic(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.Traffic(s.state.Snapshot(), f.Sub))
}

// handleModeReportEcho absorbs an inbound mode report. Centers mirror the
// report back; only the acknowledgement is owed.
func (s *Service) handleModeReportEcho(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
}

func (s *Service) handleAlarmsPoll(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.Alarms(s.state.Snapshot(), f.Sub))
}

// handleOrderEcho acknowledges configuration-style orders and mirrors an
// empty frame of the same code. The orders are idempotent here; the
// virtual cabinet has nothing to reprogram.
func (s *Service) handleOrderEcho(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.EmptyEcho(f.Sub, f.Code))
}

func (s *Service) handleDirectQuery(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.DirectState(s.state.Snapshot(), f.Sub))
}

func (s *Service) handleDirectCmd(sess *session, f une.Frame) {
	log.Info().
		Str("regulator", s.cfg.Name).
		Int("bytes", len(f.Data)).
		Msg("direct_command")
	s.sendControl(sess, une.ACK)
}

func (s *Service) handleDetectorPoll(sess *session, f une.Frame) {
	s.sendControl(sess, une.ACK)
	s.sendFrame(sess, report.DetectorCounts(s.state.Snapshot()))
}

// handleDetectPoll serves the framed form of the DET byte with the same
// fixed-zero mode report.
func (s *Service) handleDetectPoll(sess *session, f une.Frame) {
	s.sendFrame(sess, report.ModeReport(une.SubStatus))
}
