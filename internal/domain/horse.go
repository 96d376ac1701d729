package domain

// Address identifica a un actor del sistema (manager, bidder, contratos).
type Address string

// Horse es una de las opciones apostables dentro de un Run.
// Inmutable una vez creado el Run.
type Horse struct {
	Name string `json:"name"`
	// Strength pondera la selección del ganador. No participa en el
	// cálculo del payout: el volumen apostado nunca sesga la carrera.
	Strength uint64 `json:"strength"`
}

// Standing es un caballo junto con el total depositado sobre él.
type Standing struct {
	Horse Horse  `json:"horse"`
	Total uint64 `json:"total"`
}
