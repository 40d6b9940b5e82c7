// Package session implements the per-connection session engine:
// handshake, subscription, and the steady-state multiplexed loop
// described in spec.md §4.E.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"frameworks/api_wattmeter/internal/alerts"
	"frameworks/api_wattmeter/internal/authsvc"
	"frameworks/api_wattmeter/internal/billing"
	"frameworks/api_wattmeter/internal/database"
	"frameworks/api_wattmeter/internal/logging"
	"frameworks/api_wattmeter/internal/models"
	"frameworks/api_wattmeter/internal/wire"

	"github.com/google/uuid"
)

// Config holds the tunables spec.md fixes for the reference engine.
type Config struct {
	PricePerUnit        float64
	DailyStandingCharge float64
	AuthReadTimeout     time.Duration
	SendTimeout         time.Duration
	IdleTimeout         time.Duration
}

// DefaultConfig returns spec.md's fixed timeouts (10s auth read, 5s
// send, 120s idle) with the given tariff.
func DefaultConfig(pricePerUnit, dailyStandingCharge float64) Config {
	return Config{
		PricePerUnit:        pricePerUnit,
		DailyStandingCharge: dailyStandingCharge,
		AuthReadTimeout:     10 * time.Second,
		SendTimeout:         5 * time.Second,
		IdleTimeout:         120 * time.Second,
	}
}

// Metrics is the set of counters/gauges the engine updates as sessions
// progress. A nil *Metrics disables instrumentation.
type Metrics struct {
	SessionsActive Gauge
	ReadingsTotal  Counter
	BillsTotal     Counter
	AuthFailures   Counter
}

// Gauge and Counter are the minimal Prometheus surfaces the engine
// needs, so internal/session does not import prometheus directly.
type Gauge interface {
	Inc()
	Dec()
}

type Counter interface {
	Inc()
}

// Engine orchestrates one authenticated session end to end.
type Engine struct {
	db       database.Port
	store    *alerts.Store
	verifier authsvc.PasswordVerifier
	logger   logging.Logger
	cfg      Config
	metrics  *Metrics
}

// New builds an Engine. verifier may be nil, in which case authsvc.Bcrypt{} is used.
func New(db database.Port, store *alerts.Store, verifier authsvc.PasswordVerifier, logger logging.Logger, cfg Config, metrics *Metrics) *Engine {
	if verifier == nil {
		verifier = authsvc.Bcrypt{}
	}
	return &Engine{db: db, store: store, verifier: verifier, logger: logger, cfg: cfg, metrics: metrics}
}

// Run drives one session to completion on conn. It always returns
// after running teardown (unsubscribe, flush); the returned error is
// for logging only, not resurrection.
func (e *Engine) Run(ctx context.Context, conn net.Conn) error {
	sessionID := uuid.NewString()
	log := e.logger.WithFields(logging.Fields{"session_id": sessionID})

	clientID, ok := e.authenticate(ctx, conn, log)
	if !ok {
		return nil
	}

	replay, receiver, ok := e.store.Subscribe(clientID)
	if !ok {
		_ = writeRaw(conn, e.cfg.SendTimeout, wire.AlreadyConnected)
		log.WithField("client_id", clientID).Info("rejected duplicate connection")
		return nil
	}
	defer e.store.Unsubscribe(clientID)

	if replay != nil {
		payload, err := wire.EncodePowerGridIssue(replay.Error)
		if err != nil || e.sendFrame(conn, payload) != nil {
			log.WithField("client_id", clientID).Warn("failed to replay standing alert")
			return nil
		}
	}

	agg, err := billing.New(ctx, clientID, e.cfg.PricePerUnit, e.cfg.DailyStandingCharge, e.db)
	if err != nil {
		log.WithError(err).WithField("client_id", clientID).Error("failed to build billing aggregator")
		return err
	}
	defer func() {
		// Unsubscribe before flushing; the deferred Unsubscribe above
		// covers the earlier exits and is then a no-op.
		e.store.Unsubscribe(clientID)
		if err := agg.Flush(ctx); err != nil {
			log.WithError(err).WithField("client_id", clientID).Error("flush on teardown failed")
		}
	}()

	if e.metrics != nil {
		e.metrics.SessionsActive.Inc()
		defer e.metrics.SessionsActive.Dec()
	}

	log.WithField("client_id", clientID).Info("session authenticated")
	return e.steadyState(ctx, conn, clientID, agg, receiver, log)
}

// authenticate runs phase 1: spec.md §4.E.
func (e *Engine) authenticate(ctx context.Context, conn net.Conn, log logging.Logger) (clientID string, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(e.cfg.AuthReadTimeout))
	payload, err := wire.ReadFrame(conn)
	if err != nil {
		log.WithError(err).Debug("auth frame read failed")
		return "", false
	}

	var auth wire.Auth
	if err := json.Unmarshal(payload, &auth); err != nil {
		log.WithError(err).Debug("auth frame decode failed")
		_ = writeRaw(conn, e.cfg.SendTimeout, wire.AuthFailed)
		return "", false
	}

	clientID = strconv.FormatUint(auth.ID, 10)
	hash, err := e.db.ClientExists(ctx, clientID)
	if err != nil {
		log.WithError(err).Warn("client lookup failed")
		_ = writeRaw(conn, e.cfg.SendTimeout, wire.AuthFailed)
		return "", false
	}
	if hash == "" || !e.verifier.Verify(auth.Token, hash) {
		if e.metrics != nil {
			e.metrics.AuthFailures.Inc()
		}
		_ = writeRaw(conn, e.cfg.SendTimeout, wire.AuthFailed)
		return "", false
	}

	if err := writeRaw(conn, e.cfg.SendTimeout, wire.AuthSuccess); err != nil {
		log.WithError(err).Debug("failed to send auth success")
		return "", false
	}
	return clientID, true
}

type frameResult struct {
	payload []byte
	err     error
}

// steadyState runs phase 3: the three-way multiplex over inbound
// frames, alert events, and the idle timer, per spec.md §4.E/§5.
func (e *Engine) steadyState(ctx context.Context, conn net.Conn, clientID string, agg *billing.Aggregator, receiver <-chan alerts.Event, log logging.Logger) error {
	initialReading := agg.CurrentReading().Reading

	frameCh := make(chan frameResult)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			payload, err := wire.ReadFrame(conn)
			select {
			case frameCh <- frameResult{payload: payload, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idleTimer := time.NewTimer(e.cfg.IdleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case fr := <-frameCh:
			if fr.err != nil {
				if errors.Is(fr.err, io.EOF) {
					log.WithField("client_id", clientID).Info("session closed by peer")
				} else {
					log.WithError(fr.err).WithField("client_id", clientID).Info("frame read error")
				}
				return fr.err
			}

			msg, err := wire.ParseClientMessage(fr.payload)
			if err != nil {
				log.WithError(err).WithField("client_id", clientID).Info("malformed client message")
				return err
			}

			reading := models.Reading{Reading: initialReading + msg.Reading, Time: time.Now()}
			if err := agg.AddReading(ctx, reading); err != nil {
				if errors.Is(err, billing.ErrInvalidReading) {
					log.WithField("client_id", clientID).Warn("rejected out-of-order reading")
					resetTimer(idleTimer, e.cfg.IdleTimeout)
					continue
				}
				log.WithError(err).WithField("client_id", clientID).Error("failed to record reading")
				return err
			}
			if e.metrics != nil {
				e.metrics.ReadingsTotal.Inc()
				e.metrics.BillsTotal.Inc()
			}

			billPayload, err := wire.EncodeBill(agg.CurrentBill())
			if err != nil {
				return err
			}
			if err := e.sendFrame(conn, billPayload); err != nil {
				log.WithError(err).WithField("client_id", clientID).Info("failed to send bill")
				return err
			}
			resetTimer(idleTimer, e.cfg.IdleTimeout)

		case ev, chOk := <-receiver:
			if !chOk {
				log.WithField("client_id", clientID).Info("alert channel closed or lagged")
				return fmt.Errorf("session: alert channel closed")
			}
			payload, err := encodeAlertEvent(ev)
			if err != nil {
				return err
			}
			if err := e.sendFrame(conn, payload); err != nil {
				log.WithError(err).WithField("client_id", clientID).Info("failed to send alert")
				return err
			}
			// Outbound-only activity is not liveness: the idle timer
			// is not reset here, per spec.md §9 quirk 3.

		case <-idleTimer.C:
			log.WithField("client_id", clientID).Info("idle timeout")
			return fmt.Errorf("session: idle timeout")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func encodeAlertEvent(ev alerts.Event) ([]byte, error) {
	switch ev.Kind {
	case alerts.EventPowerGridError:
		return wire.EncodePowerGridIssue(ev.Alert.Error)
	case alerts.EventPowerGridErrorResolved:
		return wire.EncodePowerGridIssueResolved()
	default:
		return nil, fmt.Errorf("session: unknown alert event kind %v", ev.Kind)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (e *Engine) sendFrame(conn net.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(e.cfg.SendTimeout))
	return wire.WriteFrame(conn, payload)
}

func writeRaw(conn net.Conn, timeout time.Duration, text string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return wire.WriteFrame(conn, []byte(text))
}
