package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mokanichokani/ledger-service/internal/logger"
	"github.com/mokanichokani/ledger-service/internal/middleware"
)

// Runner plays journeys against a running ledger service. Each journey is
// one traced session: every step carries the same session ID and the last
// step ends it, so the service's active-session gauge breathes with the
// simulated load.
type Runner struct {
	scenario Scenario
	journeys []Journey
	client   *http.Client
	log      *logger.Logger
	tracer   trace.Tracer
}

func NewRunner(sc Scenario, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		scenario: sc,
		journeys: Journeys(),
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
		tracer:   otel.Tracer("journey-runner"),
	}
}

// SelectJourney draws one journey from the weighted mix.
func (r *Runner) SelectJourney() Journey {
	return journeyAt(r.journeys, rand.Float64())
}

// Run executes batches of concurrent journeys until ctx is cancelled. Batch
// size follows the clock: more concurrent journeys during business hours.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("journey simulation starting", "serviceUrl", r.scenario.ServiceURL)

	for {
		minJourneys, maxJourneys, delayMin, delayMax := batchPlan(time.Now().Hour())
		n := minJourneys + rand.Intn(maxJourneys-minJourneys+1)
		r.log.Info("starting journey batch", "journeys", n)

		rates := make([]float64, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			i := i
			journey := r.SelectJourney()
			g.Go(func() error {
				rates[i] = r.ExecuteJourney(gctx, journey)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var sum float64
		for _, rate := range rates {
			sum += rate
		}
		r.log.Info("journey batch completed", "journeys", n, "avgSuccessRate", sum/float64(n))

		delay := delayMin + time.Duration(rand.Int63n(int64(delayMax-delayMin)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// ExecuteJourney runs every step of one journey and returns the fraction of
// steps that came back 2xx. A failed step does not stop the journey; real
// clients keep clicking.
func (r *Runner) ExecuteJourney(ctx context.Context, journey Journey) float64 {
	sessionID := uuid.New().String()
	requestID := uuid.New().String()

	ctx, journeySpan := r.tracer.Start(ctx, "journey_"+journey.Name)
	defer journeySpan.End()
	journeySpan.SetAttributes(
		attribute.String("journey.id", sessionID),
		attribute.String("journey.name", journey.Name),
		attribute.String("request.id", requestID),
	)

	r.log.Info("starting journey", "journey", journey.Name, "sessionId", sessionID)

	requests := journey.Plan(r.scenario)
	succeeded := 0
	for i, req := range requests {
		status := r.step(ctx, journey, req, sessionID, requestID, i, i == len(requests)-1)
		if status >= 200 && status < 300 {
			succeeded++
		}
		r.pause(ctx)
	}

	rate := float64(succeeded) / float64(len(requests))
	journeySpan.SetAttributes(
		attribute.Float64("journey.success_rate", rate),
		attribute.String("journey.health", journeyHealth(rate)),
	)
	r.log.Info("journey completed",
		"journey", journey.Name, "sessionId", sessionID,
		"successRate", rate, "health", journeyHealth(rate))
	return rate
}

// step performs one HTTP call under its own span and returns the status
// code, or 0 when the request never got a response.
func (r *Runner) step(ctx context.Context, journey Journey, req Request, sessionID, requestID string, index int, last bool) int {
	ctx, span := r.tracer.Start(ctx, "journey_step_"+req.Step)
	defer span.End()
	span.SetAttributes(
		attribute.String("journey.id", sessionID),
		attribute.String("journey.name", journey.Name),
		attribute.Int("journey.step", index),
		attribute.String("journey.step.name", req.Step),
		attribute.String("request.id", requestID),
	)

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			span.SetAttributes(attribute.Bool("error", true), attribute.String("error.message", err.Error()))
			return 0
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, r.scenario.ServiceURL+req.Path, body)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true), attribute.String("error.message", err.Error()))
		return 0
	}
	httpReq.Header.Set(middleware.HeaderRequestID, requestID)
	httpReq.Header.Set(middleware.HeaderSessionID, sessionID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if last {
		httpReq.Header.Set(middleware.HeaderSessionEnd, "true")
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		r.log.Warn("journey step failed", "journey", journey.Name, "step", req.Step, "error", err)
		span.SetAttributes(attribute.Bool("error", true), attribute.String("error.message", err.Error()))
		return 0
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 300 {
		span.SetAttributes(attribute.Bool("error", true))
		r.log.Warn("journey step rejected",
			"journey", journey.Name, "step", req.Step, "status", resp.StatusCode)
	}
	return resp.StatusCode
}

// pause waits the scenario's per-step delay, abandoning the wait on cancel.
func (r *Runner) pause(ctx context.Context) {
	if r.scenario.StepDelayMaxMs <= 0 {
		return
	}
	window := r.scenario.StepDelayMaxMs - r.scenario.StepDelayMinMs
	ms := r.scenario.StepDelayMinMs
	if window > 0 {
		ms += rand.Intn(window + 1)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}

// batchPlan sizes one batch for the given hour: business hours get more
// concurrent journeys and shorter gaps between batches.
func batchPlan(hour int) (minJourneys, maxJourneys int, delayMin, delayMax time.Duration) {
	if hour >= 8 && hour < 18 {
		return 3, 8, 1 * time.Second, 3 * time.Second
	}
	return 1, 3, 2 * time.Second, 5 * time.Second
}

func journeyHealth(rate float64) string {
	switch {
	case rate == 1.0:
		return "healthy"
	case rate >= 0.7:
		return "degraded"
	default:
		return "critical"
	}
}
