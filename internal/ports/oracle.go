package ports

import "context"

// Oracle es la fuente de aleatoriedad externa. El engine trata la semilla
// como un valor opaco correlacionado por request id.
type Oracle interface {
	// RequestValue abre una petición de valor aleatorio y devuelve el id
	// con el que el oracle la correlaciona.
	RequestValue(ctx context.Context) (requestID uint64, err error)

	// AwaitValue bloquea hasta que el oracle publique la semilla de la
	// petición dada. No hay timeout de protocolo: un oracle que nunca
	// responde deja la operación suspendida (se corta solo por ctx).
	AwaitValue(ctx context.Context, requestID uint64) (seed uint64, err error)
}
