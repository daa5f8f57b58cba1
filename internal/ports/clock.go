package ports

import "time"

// Clock abstrae el tiempo para poder simularlo en tests y escenarios.
type Clock interface {
	Now() time.Time
}
