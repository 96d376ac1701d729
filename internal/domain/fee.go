package domain

import "fmt"

// MaxBps es el 100% en basis points.
const MaxBps uint64 = 10_000

// ValidateFeeBps rechaza cualquier fee por encima del 100%. No hay clamping
// silencioso: un valor fuera de rango es un error de configuración.
func ValidateFeeBps(v uint64) error {
	if v > MaxBps {
		return fmt.Errorf("domain.ValidateFeeBps: %d > %d bps: %w", v, MaxBps, ErrOverflow)
	}
	return nil
}

// ApplyFee separa un importe bruto en (fee, neto).
//
// fee = floor(amount * feeBps / MaxBps); net = amount - fee. El truncado es
// intencional: el fee redondea hacia abajo, el neto queda a favor del bettor
// por como mucho una unidad. Siempre fee+net == amount.
func ApplyFee(amount, feeBps uint64) (fee, net uint64, err error) {
	if err := ValidateFeeBps(feeBps); err != nil {
		return 0, 0, err
	}
	fee, err = MulDiv(amount, feeBps, MaxBps)
	if err != nil {
		return 0, 0, fmt.Errorf("domain.ApplyFee: fee: %w", err)
	}
	net, err = CheckedSub(amount, fee)
	if err != nil {
		return 0, 0, fmt.Errorf("domain.ApplyFee: net: %w", err)
	}
	return fee, net, nil
}
