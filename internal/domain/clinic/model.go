package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is the tenant root. Every other row carries its id.
type Clinic struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	Timezone  string    `db:"timezone" json:"timezone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
