package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/polymoly/config"
	"github.com/alejandrodnm/polymoly/internal/adapters/oddsapi"
	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/matcher"
	"github.com/alejandrodnm/polymoly/internal/ports"
	"github.com/alejandrodnm/polymoly/internal/scanner"
)

// creditBackoff es la espera cuando la reserva de crédito del feed está
// agotada. El pool se repone con el ciclo de facturación, así que solo
// queda reintentar con calma.
const creditBackoff = 6 * time.Hour

// Engine orquesta un ciclo de trading: cuotas → mercados → matching →
// scan → ejecución. El ritmo entre ciclos es dinámico: lejos del partido
// más próximo se consulta poco (cada consulta gasta crédito del feed),
// cerca se consulta más seguido.
type Engine struct {
	cfg      *config.Config
	odds     ports.OddsProvider
	catalog  ports.MarketCatalog
	matcher  *matcher.Matcher
	scanner  *scanner.Scanner
	executor *Executor
	ledger   ports.Ledger
	notifier ports.Notifier
	credits  *oddsapi.CreditStore
	logger   *slog.Logger
	now      func() time.Time

	// notified dedupe avisos de oportunidad por token; la entrada expira
	// cuando el partido comienza.
	notified map[string]time.Time
}

// New construye el engine. credits puede ser nil (sin avisos de crédito).
func New(
	cfg *config.Config,
	odds ports.OddsProvider,
	catalog ports.MarketCatalog,
	m *matcher.Matcher,
	s *scanner.Scanner,
	exec *Executor,
	ledger ports.Ledger,
	notifier ports.Notifier,
	credits *oddsapi.CreditStore,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		odds:     odds,
		catalog:  catalog,
		matcher:  m,
		scanner:  s,
		executor: exec,
		ledger:   ledger,
		notifier: notifier,
		credits:  credits,
		logger:   logger,
		now:      time.Now,
		notified: make(map[string]time.Time),
	}
}

// Run ejecuta el loop de trading hasta que el contexto se cancele, el
// crédito mensual se agote o aparezca la señal de parada del breaker.
func (e *Engine) Run(ctx context.Context) error {
	e.notifier.Started(ctx)

	for {
		stopped, reason, err := e.ledger.StopFlag(ctx)
		if err != nil {
			e.logger.Error("no se pudo leer la señal de parada", "error", err)
		}
		if stopped {
			e.logger.Warn("señal de parada activa, el bot no opera", "reason", reason)
			e.notifier.Stopped(ctx, reason)
			return nil
		}

		minHrs, err := e.RunOnce(ctx)
		wait := e.nextWait(minHrs, err)

		e.logger.Info("ciclo completado", "next_cycle_in", wait.String())
		select {
		case <-ctx.Done():
			e.notifier.Stopped(ctx, "shutdown")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// nextWait decide cuánto dormir según el resultado del ciclo. Los errores
// de presupuesto son esperados y se resuelven esperando; ninguno termina
// el loop.
func (e *Engine) nextWait(minHrs float64, err error) time.Duration {
	switch {
	case err == nil:
		return e.cfg.PollIntervalFor(minHrs)

	case errors.Is(err, oddsapi.ErrInsufficientCredits):
		e.logger.Warn("reserva de crédito alcanzada, backoff largo",
			"retry_in", creditBackoff.String())
		return creditBackoff

	default:
		var daily *oddsapi.DailyLimitError
		if errors.As(err, &daily) {
			wait := time.Until(daily.ResumeAt)
			if wait < time.Minute {
				wait = time.Minute
			}
			e.logger.Warn("límite diario de llamadas alcanzado",
				"resume_at", daily.ResumeAt.Format(time.RFC3339))
			return wait
		}
		e.logger.Warn("ciclo fallido, cooldown de red", "error", err)
		return e.cfg.NetworkCooldown()
	}
}

// RunOnce ejecuta un ciclo completo y devuelve las horas hasta el partido
// matcheado más próximo (para elegir el intervalo del próximo ciclo).
func (e *Engine) RunOnce(ctx context.Context) (float64, error) {
	games, warnings, err := e.odds.FetchAll(ctx)
	if err != nil {
		return math.Inf(1), err
	}
	for _, w := range warnings {
		e.logger.Warn(w)
	}
	if len(warnings) > 0 && e.credits != nil {
		st := e.credits.Snapshot()
		e.notifier.CreditsWarning(ctx, st.Remaining, e.cfg.Credits.WarnThreshold)
	}
	e.logger.Info("cuotas recibidas", "games", len(games))

	matched := e.matchAll(ctx, games)
	if len(matched) == 0 {
		e.logger.Info("ningún partido emparejado este ciclo")
		return math.Inf(1), nil
	}

	minHrs := math.Inf(1)
	for _, mg := range matched {
		if hrs := mg.Game.CommenceTime.Sub(e.now()).Hours(); hrs < minHrs {
			minHrs = hrs
		}
	}

	opps, _ := e.scanner.Scan(ctx, matched)
	for _, opp := range opps {
		e.handleOpportunity(ctx, opp)
	}
	return minHrs, nil
}

// matchAll empareja las cuotas con los mercados de Polymarket, deporte por
// deporte. Un fallo de Gamma descarta solo ese deporte en este ciclo.
func (e *Engine) matchAll(ctx context.Context, games []domain.Game) []domain.MatchedGame {
	bySport := make(map[string][]domain.Game)
	for _, g := range games {
		bySport[g.SportID] = append(bySport[g.SportID], g)
	}

	var matched []domain.MatchedGame
	for _, sport := range e.cfg.Sports {
		sportGames := bySport[sport.ID]
		if len(sportGames) == 0 {
			continue
		}
		markets, err := e.catalog.FetchSportMarkets(ctx, sport.TagSlug)
		if err != nil {
			e.logger.Warn("mercados no disponibles", "sport", sport.ID, "error", err)
			continue
		}
		found := e.matcher.Match(sportGames, markets)
		e.logger.Info("deporte procesado",
			"sport", sport.ID, "games", len(sportGames),
			"markets", len(markets), "matched", len(found))
		matched = append(matched, found...)
	}
	return matched
}

func (e *Engine) handleOpportunity(ctx context.Context, opp domain.ArbitrageOpportunity) {
	e.expireNotified()
	if _, seen := e.notified[opp.TokenID]; !seen {
		e.notified[opp.TokenID] = opp.Matched.Game.CommenceTime
		e.notifier.OpportunityFound(ctx, opp)
	}

	res := e.executor.Execute(ctx, opp)
	e.logger.Info("ejecución", "result", res.String())

	switch {
	case res.Success():
		e.notifier.Executed(ctx, res)
	case res.Status != domain.ExecSkipped:
		e.notifier.ExecutionFailed(ctx, res)
	}
}

func (e *Engine) expireNotified() {
	now := e.now()
	for token, commence := range e.notified {
		if now.After(commence) {
			delete(e.notified, token)
		}
	}
}
