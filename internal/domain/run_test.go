package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHorses = []domain.Horse{
	{Name: "Relampago", Strength: 70},
	{Name: "Tormenta", Strength: 30},
}

func makeRun(t *testing.T) *domain.Run {
	t.Helper()
	r, err := domain.NewRun(1, time.Now(), time.Minute, testHorses)
	require.NoError(t, err)
	return r
}

func TestNewRun_Validations(t *testing.T) {
	_, err := domain.NewRun(1, time.Now(), time.Minute, nil)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = domain.NewRun(1, time.Now(), time.Minute, []domain.Horse{
		{Name: "Relampago"}, {Name: "Relampago"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	// Duración cero: ventana de apuestas inválida.
	_, err = domain.NewRun(1, time.Now(), 0, testHorses)
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestRun_DepositAggregates(t *testing.T) {
	r := makeRun(t)

	require.NoError(t, r.Deposit("user1", "Relampago", 95))
	require.NoError(t, r.Deposit("user3", "Relampago", 95))
	require.NoError(t, r.Deposit("user2", "Tormenta", 285))

	// Agregado por caballo == suma de depósitos individuales.
	total, err := r.HorseTotal("Relampago")
	require.NoError(t, err)
	assert.Equal(t, uint64(190), total)

	total, err = r.HorseTotal("Tormenta")
	require.NoError(t, err)
	assert.Equal(t, uint64(285), total)

	assert.Equal(t, uint64(95), r.BidderDeposit("user1", "Relampago"))
	assert.Equal(t, uint64(0), r.BidderDeposit("user1", "Tormenta"))
}

func TestRun_DepositUnknownHorse(t *testing.T) {
	r := makeRun(t)
	err := r.Deposit("user1", "Pegaso", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRun_DepositOverflowLeavesStateIntact(t *testing.T) {
	r := makeRun(t)
	require.NoError(t, r.Deposit("user1", "Relampago", ^uint64(0)))

	err := r.Deposit("user1", "Relampago", 1)
	require.ErrorIs(t, err, domain.ErrOverflow)

	// Sin efecto parcial: ni el balance ni el agregado cambiaron.
	assert.Equal(t, ^uint64(0), r.BidderDeposit("user1", "Relampago"))
	total, err := r.HorseTotal("Relampago")
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), total)
}

func TestRun_WithdrawAllIdempotent(t *testing.T) {
	r := makeRun(t)
	require.NoError(t, r.Deposit("user1", "Relampago", 50))
	require.NoError(t, r.Deposit("user1", "Tormenta", 25))

	withdrawn, err := r.WithdrawAll("user1")
	require.NoError(t, err)
	assert.Equal(t, uint64(75), withdrawn)

	withdrawn, err = r.WithdrawAll("user1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), withdrawn)

	withdrawn, err = r.WithdrawAll("desconocido")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), withdrawn)

	// El withdraw no toca los agregados históricos.
	total, err := r.HorseTotal("Relampago")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), total)
}

func TestRun_WithdrawAllOverflowKeepsBalances(t *testing.T) {
	r := makeRun(t)

	// Cada depósito individual cabe; la suma de ambos desbordaría uint64.
	half := uint64(1) << 63
	require.NoError(t, r.Deposit("user1", "Relampago", half))
	require.NoError(t, r.Deposit("user1", "Tormenta", half))

	withdrawn, err := r.WithdrawAll("user1")
	require.ErrorIs(t, err, domain.ErrOverflow)
	assert.Equal(t, uint64(0), withdrawn)

	// El principal sigue registrado: el desborde no borra los balances.
	assert.Equal(t, half, r.BidderDeposit("user1", "Relampago"))
	assert.Equal(t, half, r.BidderDeposit("user1", "Tormenta"))
}

func TestRun_StateMachine(t *testing.T) {
	t.Run("created_to_finished", func(t *testing.T) {
		r := makeRun(t)
		require.NoError(t, r.Progress())
		assert.Equal(t, domain.StageInProgress, r.Status)

		// InProgress no puede cancelarse.
		assert.ErrorIs(t, r.Cancel(), domain.ErrStage)

		require.NoError(t, r.Finish("Relampago"))
		assert.Equal(t, domain.StageFinished, r.Status)
		assert.Equal(t, "Relampago", r.Winner)

		// Finished es terminal.
		assert.ErrorIs(t, r.Progress(), domain.ErrStage)
		assert.ErrorIs(t, r.Cancel(), domain.ErrStage)
		assert.ErrorIs(t, r.Finish("Tormenta"), domain.ErrStage)
	})

	t.Run("created_to_canceled", func(t *testing.T) {
		r := makeRun(t)
		require.NoError(t, r.Cancel())
		assert.Equal(t, domain.StageCanceled, r.Status)
		assert.True(t, r.Status.Terminal())

		assert.ErrorIs(t, r.Progress(), domain.ErrStage)
		assert.ErrorIs(t, r.Finish("Relampago"), domain.ErrStage)
	})

	t.Run("finish_requires_known_horse", func(t *testing.T) {
		r := makeRun(t)
		require.NoError(t, r.Progress())
		assert.ErrorIs(t, r.Finish("Pegaso"), domain.ErrNotFound)
		// El fallo no consumió la transición.
		assert.Equal(t, domain.StageInProgress, r.Status)
	})
}

func TestRun_BiddingOpen(t *testing.T) {
	now := time.Now()
	r, err := domain.NewRun(1, now, time.Minute, testHorses)
	require.NoError(t, err)

	assert.True(t, r.BiddingOpen(now))
	assert.True(t, r.BiddingOpen(now.Add(59*time.Second)))
	assert.False(t, r.BiddingOpen(now.Add(time.Minute)))

	require.NoError(t, r.Cancel())
	assert.False(t, r.BiddingOpen(now))
}

func TestRun_LeadingHorse(t *testing.T) {
	r := makeRun(t)

	lead, ok := r.LeadingHorse()
	require.True(t, ok)
	assert.Equal(t, uint64(0), lead.Total)

	require.NoError(t, r.Deposit("user2", "Tormenta", 285))
	require.NoError(t, r.Deposit("user1", "Relampago", 95))

	lead, ok = r.LeadingHorse()
	require.True(t, ok)
	assert.Equal(t, "Tormenta", lead.Horse.Name)
	assert.Equal(t, uint64(285), lead.Total)
}

func TestRun_LosingPool(t *testing.T) {
	r := makeRun(t)
	require.NoError(t, r.Deposit("user1", "Relampago", 190))
	require.NoError(t, r.Deposit("user2", "Tormenta", 285))

	pool, err := r.LosingPool("Relampago")
	require.NoError(t, err)
	assert.Equal(t, uint64(285), pool)

	_, err = r.LosingPool("Pegaso")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRun_CloneIsDeep(t *testing.T) {
	r := makeRun(t)
	require.NoError(t, r.Deposit("user1", "Relampago", 100))

	cp := r.Clone()
	require.NoError(t, cp.Deposit("user1", "Relampago", 900))

	assert.Equal(t, uint64(100), r.BidderDeposit("user1", "Relampago"))
	assert.Equal(t, uint64(1000), cp.BidderDeposit("user1", "Relampago"))

	total, err := r.HorseTotal("Relampago")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), total)
}
