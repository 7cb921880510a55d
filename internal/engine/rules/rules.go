package rules

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Espaços de resultado suportados (o "modulo" de cada jogo):
// 2 = cara/coroa, 6 = dado, 36 = dado duplo, 37 = roleta, 100 = roll %.
var ValidModulos = map[int64]bool{2: true, 6: true, 36: true, 37: true, 100: true}

// Até esse modulo o conjunto vencedor é uma máscara de bits (um bit por resultado).
// Acima disso a aposta usa um limiar (edge) com direção de comparação.
const MaskModuloLimit = 40

// Rules é a configuração versionada do motor de liquidação. Carregada uma vez
// no startup e substituída por inteiro (nunca mutada in-place) quando uma
// mudança aprovada pela governança é aplicada.
type Rules struct {
	Version int

	MinWagerUnits int64
	MaxWagerUnits int64

	// Edge da casa em percentual inteiro; override por modulo com fallback
	// para o default.
	DefaultEdgePct  int64
	EdgePctByModulo map[int64]int64

	// Taxa de riqueza: a cada múltiplo de WealthTaxThresholdUnits apostado,
	// soma-se WealthTaxPct ao edge. Threshold 0 desativa.
	WealthTaxThresholdUnits int64
	WealthTaxPct            int64

	// Teto global de lucro por rodada (ganho acima de wager+MaxProfit é cortado).
	MaxProfitUnits int64

	// Piso de precisão do prêmio: o valor bruto é truncado para baixo em
	// múltiplos dessa granularidade ANTES do teto de lucro. As duas operações
	// não comutam na borda; a ordem aqui é truncar e depois capar.
	PayoutGranularityUnits int64

	// Faixa permitida do limiar nas apostas de comparação (modulo 100).
	MinLargerEdge int64
	MaxLargerEdge int64

	MaxRounds int

	// Janela máxima entre o pedido ao oráculo e o callback de fulfillment.
	FulfillWindow time.Duration

	// Janelas de devolução por variante (aposta pendente além disso é reembolsável).
	RefundTimeoutCommit time.Duration
	RefundTimeoutOracle time.Duration
}

// Default retorna as regras com os valores padrão do ambiente local.
func Default() *Rules {
	return &Rules{
		Version:                 1,
		MinWagerUnits:           100,
		MaxWagerUnits:           1_000_000_000,
		DefaultEdgePct:          1,
		EdgePctByModulo:         map[int64]int64{},
		WealthTaxThresholdUnits: 0,
		WealthTaxPct:            0,
		MaxProfitUnits:          10_000_000_000,
		PayoutGranularityUnits:  1000,
		MinLargerEdge:           0,
		MaxLargerEdge:           98,
		MaxRounds:               100,
		FulfillWindow:           time.Hour,
		RefundTimeoutCommit:     2 * time.Hour,
		RefundTimeoutOracle:     3 * time.Hour,
	}
}

// Load monta as regras a partir de variáveis de ambiente, caindo nos defaults.
func Load() *Rules {
	r := Default()
	r.MinWagerUnits = getInt("RULE_MIN_WAGER", r.MinWagerUnits)
	r.MaxWagerUnits = getInt("RULE_MAX_WAGER", r.MaxWagerUnits)
	r.DefaultEdgePct = getInt("RULE_DEFAULT_EDGE_PCT", r.DefaultEdgePct)
	r.WealthTaxThresholdUnits = getInt("RULE_WEALTH_TAX_THRESHOLD", r.WealthTaxThresholdUnits)
	r.WealthTaxPct = getInt("RULE_WEALTH_TAX_PCT", r.WealthTaxPct)
	r.MaxProfitUnits = getInt("RULE_MAX_PROFIT", r.MaxProfitUnits)
	r.PayoutGranularityUnits = getInt("RULE_PAYOUT_GRANULARITY", r.PayoutGranularityUnits)
	r.MinLargerEdge = getInt("RULE_MIN_LARGER_EDGE", r.MinLargerEdge)
	r.MaxLargerEdge = getInt("RULE_MAX_LARGER_EDGE", r.MaxLargerEdge)
	r.FulfillWindow = getDur("RULE_FULFILL_WINDOW", r.FulfillWindow)
	r.RefundTimeoutCommit = getDur("RULE_REFUND_TIMEOUT_COMMIT", r.RefundTimeoutCommit)
	r.RefundTimeoutOracle = getDur("RULE_REFUND_TIMEOUT_ORACLE", r.RefundTimeoutOracle)
	return r
}

// EdgePct resolve o edge da casa para um modulo, com fallback no default.
func (r *Rules) EdgePct(modulo int64) int64 {
	if pct, ok := r.EdgePctByModulo[modulo]; ok {
		return pct
	}
	return r.DefaultEdgePct
}

// RefundTimeout retorna a janela de devolução da variante ("COMMIT_REVEAL"/"ORACLE").
func (r *Rules) RefundTimeout(variant string) time.Duration {
	if variant == "ORACLE" {
		return r.RefundTimeoutOracle
	}
	return r.RefundTimeoutCommit
}

// Clone devolve uma cópia profunda, base para a próxima versão das regras.
func (r *Rules) Clone() *Rules {
	cp := *r
	cp.EdgePctByModulo = make(map[int64]int64, len(r.EdgePctByModulo))
	for m, pct := range r.EdgePctByModulo {
		cp.EdgePctByModulo[m] = pct
	}
	return &cp
}

// Validate rejeita combinações sem sentido antes de uma versão entrar em vigor.
func (r *Rules) Validate() error {
	if r.MinWagerUnits <= 0 || r.MaxWagerUnits < r.MinWagerUnits {
		return fmt.Errorf("rules: wager bounds invalid (min=%d max=%d)", r.MinWagerUnits, r.MaxWagerUnits)
	}
	if r.DefaultEdgePct < 0 || r.DefaultEdgePct >= 100 {
		return fmt.Errorf("rules: default edge pct invalid (%d)", r.DefaultEdgePct)
	}
	if r.PayoutGranularityUnits <= 0 {
		return fmt.Errorf("rules: payout granularity must be positive")
	}
	if r.MaxRounds < 1 {
		return fmt.Errorf("rules: max rounds must be >= 1")
	}
	if r.MinLargerEdge < 0 || r.MaxLargerEdge >= 100 || r.MinLargerEdge > r.MaxLargerEdge {
		return fmt.Errorf("rules: larger-edge range invalid (%d..%d)", r.MinLargerEdge, r.MaxLargerEdge)
	}
	return nil
}

func getInt(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getDur(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
