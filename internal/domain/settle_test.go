package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedRun(t *testing.T, winner string, deposits map[domain.Address]map[string]uint64) *domain.Run {
	t.Helper()
	r, err := domain.NewRun(7, time.Now(), time.Minute, testHorses)
	require.NoError(t, err)
	for bidder, byHorse := range deposits {
		for horse, amount := range byHorse {
			require.NoError(t, r.Deposit(bidder, horse, amount))
		}
	}
	require.NoError(t, r.Progress())
	require.NoError(t, r.Finish(winner))
	return r
}

func TestSelectWinner_Deterministic(t *testing.T) {
	r := makeRun(t)

	first, err := domain.SelectWinner(r, 12345)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := domain.SelectWinner(r, 12345)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectWinner_RunIDChangesOutcomeSpace(t *testing.T) {
	// La misma semilla sobre runs distintos no debe producir la misma
	// secuencia de ganadores en general: el id entra en el hash.
	differs := false
	for seed := uint64(0); seed < 200; seed++ {
		a, err := domain.NewRun(1, time.Now(), time.Minute, testHorses)
		require.NoError(t, err)
		b, err := domain.NewRun(2, time.Now(), time.Minute, testHorses)
		require.NoError(t, err)

		wa, err := domain.SelectWinner(a, seed)
		require.NoError(t, err)
		wb, err := domain.SelectWinner(b, seed)
		require.NoError(t, err)
		if wa != wb {
			differs = true
			break
		}
	}
	assert.True(t, differs)
}

func TestSelectWinner_StrengthWeighting(t *testing.T) {
	// Propiedad: más Strength ⇒ gana más a menudo. Con 70/30 sobre muchas
	// semillas, el fuerte tiene que dominar con margen holgado.
	wins := map[string]int{}
	r := makeRun(t)
	for seed := uint64(0); seed < 2000; seed++ {
		w, err := domain.SelectWinner(r, seed)
		require.NoError(t, err)
		wins[w]++
	}

	assert.Greater(t, wins["Relampago"], wins["Tormenta"])
	assert.Greater(t, wins["Relampago"], 1100) // ~70% de 2000, con holgura
	assert.Greater(t, wins["Tormenta"], 0)     // el débil también puede ganar
}

func TestSelectWinner_VolumeDoesNotBias(t *testing.T) {
	// Apostar fuerte a un caballo no puede mover la selección.
	r := makeRun(t)
	base, err := domain.SelectWinner(r, 999)
	require.NoError(t, err)

	require.NoError(t, r.Deposit("whale", "Tormenta", 1_000_000))
	after, err := domain.SelectWinner(r, 999)
	require.NoError(t, err)
	assert.Equal(t, base, after)
}

func TestSelectWinner_ZeroStrengthIsUniformTotal(t *testing.T) {
	r, err := domain.NewRun(3, time.Now(), time.Minute, []domain.Horse{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	for seed := uint64(0); seed < 300; seed++ {
		w, err := domain.SelectWinner(r, seed)
		require.NoError(t, err)
		seen[w] = true
	}
	// Función total: siempre devuelve un caballo, y todos son alcanzables.
	assert.Len(t, seen, 3)
}

func TestPayout_ScenarioNetDeposits(t *testing.T) {
	// fee_bps=500, bids brutas 100/300/100 ⇒ netas 95/285/95.
	// Gana Relampago: share user1 = 5000 bps, profit = floor(285*5000/10000) = 142.
	r := finishedRun(t, "Relampago", map[domain.Address]map[string]uint64{
		"user1": {"Relampago": 95},
		"user2": {"Tormenta": 285},
		"user3": {"Relampago": 95},
	})

	stake, profit, err := domain.Payout(r, "user1")
	require.NoError(t, err)
	assert.Equal(t, uint64(95), stake)
	assert.Equal(t, uint64(142), profit)
	assert.Equal(t, uint64(237), stake+profit)

	stake, profit, err = domain.Payout(r, "user3")
	require.NoError(t, err)
	assert.Equal(t, uint64(237), stake+profit)

	// Total pagado 474 ≤ pool 475; una unidad de polvo queda en el contrato.
	total, err := r.HorseTotal("Relampago")
	require.NoError(t, err)
	losing, err := r.LosingPool("Relampago")
	require.NoError(t, err)
	assert.LessOrEqual(t, uint64(474), total+losing)
}

func TestPayout_Conservation(t *testing.T) {
	// Σ payouts ≤ pool total, con déficit < número de ganadores.
	winners := map[domain.Address]uint64{
		"w1": 33, "w2": 77, "w3": 123, "w4": 1,
	}
	deposits := map[domain.Address]map[string]uint64{
		"loser": {"Tormenta": 997},
	}
	for bidder, amount := range winners {
		deposits[bidder] = map[string]uint64{"Relampago": amount}
	}
	r := finishedRun(t, "Relampago", deposits)

	var paid, winnerPool uint64
	for bidder, amount := range winners {
		stake, profit, err := domain.Payout(r, bidder)
		require.NoError(t, err)
		paid += stake + profit
		winnerPool += amount
	}

	pool := winnerPool + 997
	assert.LessOrEqual(t, paid, pool)
	assert.Less(t, pool-paid, uint64(len(winners))) // déficit < nº de ganadores
}

func TestPayout_RequiresWinnerStake(t *testing.T) {
	r := finishedRun(t, "Relampago", map[domain.Address]map[string]uint64{
		"user1": {"Relampago": 95},
		"user2": {"Tormenta": 285},
	})

	// Apostó solo al perdedor.
	_, _, err := domain.Payout(r, "user2")
	assert.ErrorIs(t, err, domain.ErrNotWinner)

	// Sin registro: zero stake.
	_, _, err = domain.Payout(r, "fantasma")
	assert.ErrorIs(t, err, domain.ErrZeroStake)
}

func TestPayout_SecondWithdrawalPaysNothing(t *testing.T) {
	r := finishedRun(t, "Relampago", map[domain.Address]map[string]uint64{
		"user1": {"Relampago": 95},
		"user2": {"Tormenta": 285},
	})

	stake, profit, err := domain.Payout(r, "user1")
	require.NoError(t, err)
	withdrawn, err := r.WithdrawAll("user1")
	require.NoError(t, err)
	assert.Equal(t, stake, withdrawn)
	assert.Equal(t, uint64(142), profit)

	// Tras retirar, el balance quedó a cero: un segundo intento es ErrZeroStake.
	_, _, err = domain.Payout(r, "user1")
	assert.ErrorIs(t, err, domain.ErrZeroStake)
	withdrawn, err = r.WithdrawAll("user1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), withdrawn)
}

func TestPayout_RequiresFinishedRun(t *testing.T) {
	r := makeRun(t)
	require.NoError(t, r.Deposit("user1", "Relampago", 95))

	_, _, err := domain.Payout(r, "user1")
	assert.ErrorIs(t, err, domain.ErrStage)
}
