// Package pipeline wires every subsystem into the single cooperative
// scheduler: one chat message flows through detection, resolution,
// pricing, filtering, scoring, and outcome tracking, then the priority
// queue and periodic scheduler drive the ongoing lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/chain"
	"github.com/chainsignal/chainsignal/internal/chatsource"
	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/deadtoken"
	"github.com/chainsignal/chainsignal/internal/detect"
	"github.com/chainsignal/chainsignal/internal/filter"
	"github.com/chainsignal/chainsignal/internal/historical"
	"github.com/chainsignal/chainsignal/internal/metrics"
	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/outcome"
	"github.com/chainsignal/chainsignal/internal/priceengine"
	"github.com/chainsignal/chainsignal/internal/providers/guards"
	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
	"github.com/chainsignal/chainsignal/internal/queue"
	"github.com/chainsignal/chainsignal/internal/reputation"
	"github.com/chainsignal/chainsignal/internal/resolve"
	"github.com/chainsignal/chainsignal/internal/scheduler"
	"github.com/chainsignal/chainsignal/internal/scorer"
	"github.com/chainsignal/chainsignal/internal/sentiment"
	"github.com/chainsignal/chainsignal/internal/sink"
	"github.com/chainsignal/chainsignal/internal/telemetry"
)

// Pipeline owns every long-lived component and the single `ProcessMessage`
// entry point that turns one chat message into filter/outcome state.
type Pipeline struct {
	cfg *config.Config

	detector  *detect.Detector
	filter    *filter.Filter
	resolver  *resolve.Resolver
	engine    *priceengine.Engine
	analyzer  sentiment.Analyzer
	blacklist *deadtoken.Blacklist
	explorer  *priceproviders.ExplorerProvider
	security  *priceproviders.SecurityProvider

	outcomes    *outcome.Tracker
	reputation  *reputation.Engine
	historical  *historical.Service
	sched       *scheduler.Scheduler
	queue       *queue.Queue
	metrics     *metrics.Registry
	guards      *guards.Registry
	csvSink     *sink.CSVSink
	pgSink      *sink.PostgresUpsertSink
	messageSink *sink.SQLXMessageSink

	source chatsource.Source

	statsMu      sync.Mutex
	windowStart  time.Time
	processed    int
	sentiment    map[string]int
	latencies    []time.Duration
	sinkErrors   int
	queueDropped int
}

// Options bundles the filesystem roots, optional chat source, and
// optional Postgres DSN the pipeline is built against. PostgresDSN is
// used for both the pgxpool-backed upsert sink and the sqlx+lib/pq
// append-only messages sink — leave empty to run with the CSV sink
// only.
type Options struct {
	DataDir     string
	Source      chatsource.Source // nil disables live streaming (report/health commands)
	PostgresDSN string
}

// New wires every subsystem from configuration following the
// canonical provider preference order: dexscreener, coingecko,
// defillama, explorer, security, rpc.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	registry := guards.NewRegistry(cfg.Providers)
	metricsRegistry := metrics.NewRegistry()

	dex := priceproviders.NewDexScreenerProvider("https://api.dexscreener.com/latest/dex", registry.Guard("dexscreener"))
	cg := priceproviders.NewCoinGeckoProvider("https://api.coingecko.com/api/v3", providerAPIKey(cfg, "coingecko"), registry.Guard("coingecko"))
	llama := priceproviders.NewDefiLlamaProvider("https://coins.llama.fi", registry.Guard("defillama"))
	explorer := priceproviders.NewExplorerProvider("https://api.etherscan.io/v2/api", providerAPIKey(cfg, "explorer"), providerChainID(cfg), registry.Guard("explorer"))
	security := priceproviders.NewSecurityProvider("https://api.gopluslabs.io/api/v1/token_security", registry.Guard("security"))

	var rpc *priceproviders.RPCProvider
	if rpcURL := providerBaseURL(cfg, "rpc"); rpcURL != "" {
		var err error
		rpc, err = priceproviders.NewRPCProvider(rpcURL, registry.Guard("rpc"))
		if err != nil {
			return nil, fmt.Errorf("dialing evm rpc: %w", err)
		}
	}

	// explorer and security are not PriceProvider implementations — the
	// explorer feeds the dead-token check (supply/age) and security's
	// honeypot flag feeds the blacklist, rather than the price fan-out.
	engine := priceengine.New(dex, []priceproviders.Provider{cg, llama}, rpcSymbolFunc(rpc), registry, metricsRegistry)
	resolver := resolve.New(dex, rpc)

	// cg (CoinGecko) supplies daily OHLC candles, llama (DefiLlama)
	// supplies the point-in-time historical spot fallback.
	histSvc := historical.New(cg, nil, llama, opts.DataDir+"/historical_cache.json")

	tickers := cfg.Tickers.Flattened()
	keywordList := cfg.Keywords.Keywords

	p := &Pipeline{
		cfg:       cfg,
		detector:  detect.NewDetector(tickers, keywordList),
		filter:    filter.New(cfg.Filter),
		resolver:  resolver,
		engine:    engine,
		analyzer:  sentiment.NewPatternAnalyzer(),
		blacklist: deadtoken.New(opts.DataDir + "/dead_tokens_blacklist.json"),
		explorer:  explorer,
		security:  security,

		outcomes:   outcome.New(opts.DataDir+"/reputation/active_tracking.json", opts.DataDir+"/reputation/completed_history.json"),
		reputation: reputation.New(opts.DataDir+"/reputation/channels.json", opts.DataDir+"/reputation/coins_cross_channel.json"),
		historical:  histSvc,
		metrics:     metricsRegistry,
		guards:      registry,
		source:      opts.Source,
		windowStart: time.Now(),
		sentiment:   make(map[string]int),
	}

	csvSink, err := sink.NewCSVSink(opts.DataDir + "/messages.csv")
	if err != nil {
		return nil, fmt.Errorf("opening csv sink: %w", err)
	}
	p.csvSink = csvSink

	var schedulerSinks []scheduler.Sink
	if opts.PostgresDSN != "" {
		pgSink, err := sink.NewPostgresUpsertSink(ctx, opts.PostgresDSN, cfg.Pipeline.ReputationInterval())
		if err != nil {
			return nil, fmt.Errorf("connecting postgres upsert sink: %w", err)
		}
		p.pgSink = pgSink
		schedulerSinks = append(schedulerSinks, pgSink)

		db, err := sqlx.Connect("postgres", opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting sqlx messages sink: %w", err)
		}
		p.messageSink = sink.NewSQLXMessageSink(db, 10*time.Second)
	}

	p.queue = queue.New(cfg.Pipeline.MaxQueueSize, cfg.Pipeline.MessagesPerSecond, time.Duration(cfg.Pipeline.DrainTimeoutSeconds)*time.Second)
	p.sched = scheduler.New(p.outcomes, p.reputation, p.finalizeOutcome, schedulerSinks...).WithInterval(cfg.Pipeline.ReputationInterval())

	return p, nil
}

// finalizeOutcome computes terminal ATH fields via the historical price
// service when they weren't already populated by ordinary checkpoint
// Update calls, then upserts the performance row before the scheduler
// archives the outcome.
func (p *Pipeline) finalizeOutcome(ctx context.Context, so *model.SignalOutcome, now time.Time) error {
	if so.ATHTimestamp == nil && p.historical != nil {
		symbol := so.Address
		if so.Symbol != nil && *so.Symbol != "" {
			symbol = *so.Symbol
		}
		windowDays := int(now.Sub(so.EntryTimestamp).Hours() / 24)
		if windowDays < 1 {
			windowDays = 1
		}
		hist, err := p.historical.ForwardOHLCWithATH(ctx, symbol, so.Chain, so.Address, so.EntryTimestamp, windowDays)
		if err != nil {
			log.Debug().Err(err).Str("address", so.Address).Msg("historical ATH backfill failed at archival")
		} else {
			so.ATHPrice = hist.ATHInWindow
			if so.EntryPrice > 0 {
				so.ATHMultiplier = hist.ATHInWindow / so.EntryPrice
			}
			athTS := hist.ATHTimestamp
			so.ATHTimestamp = &athTS
			so.DaysToATH = hist.DaysToATH
		}
	}

	if p.pgSink == nil {
		return nil
	}
	return p.pgSink.UpsertPerformance(ctx, so)
}

func providerAPIKey(cfg *config.Config, name string) string {
	if pc, ok := cfg.Providers.Providers[name]; ok {
		return pc.APIKey
	}
	return ""
}

func providerBaseURL(cfg *config.Config, name string) string {
	if pc, ok := cfg.Providers.Providers[name]; ok {
		return pc.BaseURL
	}
	return ""
}

func providerChainID(cfg *config.Config) string {
	return providerChainIDValue(cfg)
}

func providerChainIDValue(cfg *config.Config) string {
	if pc, ok := cfg.Providers.Providers["explorer"]; ok && pc.ChainID != "" {
		return pc.ChainID
	}
	return "1"
}

func rpcSymbolFunc(rpc *priceproviders.RPCProvider) func(ctx context.Context, chain, address string) (string, error) {
	if rpc == nil {
		return nil
	}
	return func(ctx context.Context, chainHint, address string) (string, error) {
		if chainHint != "evm" {
			return "", fmt.Errorf("rpc symbol lookup only supported for evm")
		}
		return rpc.Symbol(ctx, address)
	}
}

// Enqueue admits an inbound chat message event onto the priority
// queue, priority derived from the mentioning channel's current
// reputation.
func (p *Pipeline) Enqueue(ev chatsource.MessageEvent) {
	rep := p.reputation.Get(ev.ChannelName)
	var score *float64
	if rep != nil {
		s := rep.ReputationScore
		score = &s
	}
	priority := queue.ReputationPriority(score)
	if !p.queue.Enqueue(priority, ev) {
		p.metrics.QueueDropped.Inc()
		p.statsMu.Lock()
		p.queueDropped++
		p.statsMu.Unlock()
	}
	p.metrics.QueueDepth.Set(float64(p.queue.Len()))
}

// ProcessMessage runs the full per-message pipeline: detect mentions,
// classify chain, resolve to an underlying token, fetch price, filter,
// score, and admit into outcome tracking.
func (p *Pipeline) ProcessMessage(ctx context.Context, ev chatsource.MessageEvent) error {
	if !p.detector.Functional() {
		return nil
	}

	mentions := p.detector.Detect(ev.MessageText)
	if len(mentions) == 0 {
		return nil
	}

	families := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if m.Address != nil {
			families = append(families, string(m.Address.Family))
		}
	}
	hint := chain.Classify(ev.MessageText, families)

	for _, m := range mentions {
		if m.Address == nil || !m.Address.Valid {
			continue
		}
		p.processAddressMention(ctx, ev, m, string(hint))
	}
	return nil
}

func (p *Pipeline) processAddressMention(ctx context.Context, ev chatsource.MessageEvent, m detect.Mention, chainHint string) {
	started := time.Now()
	address := m.Address.Normalized()

	if p.blacklist.IsBlacklisted(address) {
		p.metrics.RecordMessageFiltered(ev.ChannelName, "blacklisted")
		return
	}

	resolveStart := time.Now()
	result := p.resolver.Resolve(ctx, chainHint, address)
	p.metrics.StageLatency.Record(metrics.StageResolve, time.Since(resolveStart))
	resolvedAddress := address
	if result.IsPool {
		resolvedAddress = result.Address
	}

	priceStart := time.Now()
	pd := p.engine.GetPrice(ctx, chainHint, resolvedAddress)
	p.metrics.StageLatency.Record(metrics.StagePrice, time.Since(priceStart))
	if pd == nil {
		signal := deadtoken.Signal{Price: nil}
		if chainHint == "evm" && p.explorer != nil {
			if supply, err := p.explorer.TokenSupply(ctx, resolvedAddress); err == nil {
				signal.TotalSupplyWei = supply
			}
			if created, err := p.explorer.ContractCreationTime(ctx, resolvedAddress); err == nil {
				signal.ContractAgeDays = time.Since(created).Hours() / 24
			}
		}
		reason := deadtoken.Evaluate(signal)
		if reason != "" {
			p.blacklist.Add(resolvedAddress, chainHint, reason, signal.TotalSupplyWei, 0, signal.Transfers)
		}
		p.metrics.RecordMessageFiltered(ev.ChannelName, "no_price")
		return
	}

	symbol := resolvedSymbol(m, pd)

	candidate := filter.Candidate{
		Symbol:      symbol,
		Address:     resolvedAddress,
		Chain:       chainHint,
		Price:       &pd.PriceUSD,
		MarketCap:   pd.MarketCap,
		MessageText: ev.MessageText,
	}
	verdict := p.filter.Evaluate(candidate)
	if !verdict.Admitted {
		p.metrics.RecordMessageFiltered(ev.ChannelName, verdict.Reason)
		return
	}

	if chainHint == "evm" && p.security != nil {
		if sec, err := p.security.Check(ctx, providerChainIDValue(p.cfg), resolvedAddress); err == nil && sec != nil && sec.IsHoneypot {
			p.blacklist.Add(resolvedAddress, chainHint, "honeypot_flagged", 0, sec.HolderCount, 0)
			p.metrics.RecordMessageFiltered(ev.ChannelName, "honeypot")
			return
		}
	}

	rep := p.reputation.Get(ev.ChannelName)
	var sharpe *float64
	if rep != nil {
		s := rep.SharpeRatio
		sharpe = &s
	}

	counters := scorer.EngagementCounters{
		Forwards:  ev.RawMessage.Forwards,
		Views:     ev.RawMessage.Views,
		Reactions: sumReactions(ev.RawMessage.Reactions),
	}
	if ev.RawMessage.Replies != nil {
		counters.Replies = ev.RawMessage.Replies.Replies
	}

	scoreStart := time.Now()
	hdrb, sentimentResult, sentimentScore, confidence := scorer.AnalyzeMessage(
		ev.MessageText, counters, true, p.cfg.Pipeline.MaxIC, p.cfg.Pipeline.ConfidenceThreshold, sharpe, p.analyzer)
	p.metrics.StageLatency.Record(metrics.StageScore, time.Since(scoreStart))

	tier := model.ClassifyTier(valueOrZero(pd.MarketCap))

	admitResult := p.outcomes.Admit(ev.MessageID, ev.ChannelName, resolvedAddress, pd.PriceUSD, ev.Timestamp, model.EntrySourceCurrentPrice, tier, chainHint)
	if admitResult.Duplicate {
		return
	}
	p.sched.NoteChannel(ev.ChannelName)

	p.metrics.RecordMessageAdmitted(ev.ChannelName)
	row := sink.MessageRow{
		MessageID:   ev.MessageID,
		ChannelName: ev.ChannelName,
		Address:     resolvedAddress,
		Symbol:      symbol,
		Timestamp:   ev.Timestamp,
		Confidence:  confidence.Adjusted,
		HDRBScore:   hdrb.NormalizedScore,
	}
	sinkStart := time.Now()
	if err := p.csvSink.WriteMessage(row); err != nil {
		log.Error().Err(err).Msg("failed to write message row to csv sink")
		p.recordSinkError()
	}
	if p.messageSink != nil {
		if err := p.messageSink.WriteMessage(ctx, row); err != nil {
			log.Error().Err(err).Msg("failed to write message row to postgres messages sink")
			p.recordSinkError()
		}
	}
	if p.pgSink != nil {
		if err := p.pgSink.UpsertPrice(ctx, resolvedAddress, pd); err != nil {
			log.Error().Err(err).Msg("failed to upsert token price")
			p.recordSinkError()
		}
	}
	p.metrics.StageLatency.Record(metrics.StageSink, time.Since(sinkStart))

	log.Debug().
		Str("channel", ev.ChannelName).
		Str("address", resolvedAddress).
		Str("sentiment", string(sentimentResult)).
		Float64("confidence", confidence.Adjusted).
		Msg("message admitted into outcome tracking")

	elapsed := time.Since(started)
	block := telemetry.MessageBlock{
		ChannelName:    ev.ChannelName,
		MessageID:      ev.MessageID,
		HDRBScore:      hdrb.NormalizedScore,
		Mentions:       []string{symbol},
		Addresses:      []string{resolvedAddress},
		SentimentLabel: string(sentimentResult),
		SentimentScore: sentimentScore,
		Confidence:     confidence.Adjusted,
		ConfidenceHigh: confidence.High,
		ProcessingTime: elapsed,
	}
	fmt.Print(block.Render())

	p.statsMu.Lock()
	p.processed++
	p.sentiment[string(sentimentResult)]++
	p.latencies = append(p.latencies, elapsed)
	p.statsMu.Unlock()
}

func (p *Pipeline) recordSinkError() {
	p.statsMu.Lock()
	p.sinkErrors++
	p.statsMu.Unlock()
}

// verificationReport builds a summary of pipeline activity since the
// last call and resets the accumulator window.
func (p *Pipeline) verificationReport(now time.Time) telemetry.VerificationReport {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	report := telemetry.VerificationReport{
		WindowStart:       p.windowStart,
		WindowEnd:         now,
		MessagesProcessed: p.processed,
		SentimentCounts:   p.sentiment,
		QueueDropped:      p.queueDropped,
	}
	if p.processed > 0 {
		report.SinkErrorRate = float64(p.sinkErrors) / float64(p.processed)
	}
	report.LatencyP50, report.LatencyP95, report.LatencyP99 = percentileLatencies(p.latencies)

	p.windowStart = now
	p.processed = 0
	p.sentiment = make(map[string]int)
	p.latencies = nil
	p.sinkErrors = 0
	p.queueDropped = 0
	return report
}

func percentileLatencies(samples []time.Duration) (p50, p95, p99 time.Duration) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(pct float64) time.Duration {
		idx := int(math.Ceil(pct*float64(len(sorted)))) - 1
		if idx < 0 {
			idx = 0
		}
		return sorted[idx]
	}
	return at(0.50), at(0.95), at(0.99)
}

// runVerificationReports prints a periodic activity summary until ctx
// is cancelled.
func (p *Pipeline) runVerificationReports(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fmt.Print(p.verificationReport(now).Render())
		}
	}
}

// resolvedSymbol prefers the price engine's resolved symbol, falling
// back to the ticker text the detector actually matched.
func resolvedSymbol(m detect.Mention, pd *model.PriceData) string {
	if pd.Symbol != nil && *pd.Symbol != "" {
		return *pd.Symbol
	}
	if m.Ticker != nil {
		return *m.Ticker
	}
	if m.Address != nil && m.Address.UnderlyingSym != nil {
		return *m.Address.UnderlyingSym
	}
	return ""
}

func sumReactions(reactions []chatsource.Reaction) int {
	total := 0
	for _, r := range reactions {
		total += r.Count
	}
	return total
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Run starts the long-lived cooperative tasks: the chat source
// stream feeding the priority queue, the queue's single consumer
// draining into ProcessMessage, and the scheduler's periodic cycle —
// one cooperative scheduler drives the whole system.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.source != nil {
		events, err := p.source.Stream(ctx)
		if err != nil {
			return fmt.Errorf("starting chat source stream: %w", err)
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					p.Enqueue(ev)
				}
			}
		}()
	}

	go p.sched.Run(ctx)
	go p.runVerificationReports(ctx, 15*time.Minute)

	p.queue.Run(ctx, func(ctx context.Context, msg *queue.Message) error {
		ev, ok := msg.Payload.(chatsource.MessageEvent)
		if !ok {
			return fmt.Errorf("unexpected queue payload type")
		}
		return p.ProcessMessage(ctx, ev)
	})
	return nil
}

// HealthCheck reports component-level pass/fail: whether the detector
// has a non-empty ticker/keyword set, and whether the price engine
// (primary provider, then the secondary fan-out) returns a price for a
// known-good probe token.
type HealthCheck struct {
	DetectorFunctional bool                                   `json:"detector_functional"`
	PriceEngineHealthy bool                                   `json:"price_engine_healthy"`
	PriceEngineError   string                                 `json:"price_engine_error,omitempty"`
	QueueDepth         int                                    `json:"queue_depth"`
	StageLatencies     map[metrics.Stage]metrics.StageLatency `json:"stage_latencies"`
	ProviderFleet      metrics.FleetHealth                    `json:"provider_fleet"`
}

// probeChain and probeAddress are WETH on Ethereum mainnet — a stable,
// always-listed pair used purely to confirm provider connectivity.
const (
	probeChain   = "evm"
	probeAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

func (p *Pipeline) HealthCheck(ctx context.Context) HealthCheck {
	hc := HealthCheck{
		DetectorFunctional: p.detector.Functional(),
		QueueDepth:         p.queue.Len(),
		StageLatencies:     p.metrics.StageLatency.Snapshot(),
		ProviderFleet:      p.engine.ProviderFleetHealth(),
	}

	pd := p.engine.GetPrice(ctx, probeChain, probeAddress)
	if pd == nil {
		hc.PriceEngineError = "no provider returned a price for the probe token"
	} else {
		hc.PriceEngineHealthy = true
	}
	return hc
}

// ChannelReputations returns a snapshot of every tracked channel's
// current reputation, for the report command.
func (p *Pipeline) ChannelReputations() map[string]*model.ChannelReputation {
	return p.reputation.All()
}

// RunSchedule drives only the periodic reputation/archival cycle on
// the configured fixed interval, blocking until ctx is cancelled.
func (p *Pipeline) RunSchedule(ctx context.Context) {
	p.sched.Run(ctx)
}

// RunScheduleCron drives the periodic cycle on a crontab expression
// instead of the fixed interval, blocking until ctx is cancelled.
func (p *Pipeline) RunScheduleCron(ctx context.Context, spec string) error {
	return p.sched.RunCron(ctx, spec)
}

// MetricsHandler exposes the Prometheus scrape endpoint for this
// pipeline's registry.
func (p *Pipeline) MetricsHandler() http.Handler {
	return p.metrics.Handler()
}

// ProvidersHandler exposes a secondary plain-text endpoint scoped to
// per-provider call/error/latency/circuit/budget accounting, kept
// distinct from MetricsHandler's client_golang registry since this
// accounting is accumulated in-process rather than registered as
// Prometheus collectors.
func (p *Pipeline) ProvidersHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, p.engine.ProvidersText())
	})
}

// Close releases the sinks' underlying connections. Callers should defer
// this after constructing a Pipeline via New.
func (p *Pipeline) Close() error {
	if p.pgSink != nil {
		p.pgSink.Close()
	}
	if p.guards != nil {
		if err := p.guards.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close provider guard registry")
		}
	}
	if p.messageSink != nil {
		return p.messageSink.Close()
	}
	return nil
}
