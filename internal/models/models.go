package models

import (
	"time"
)

const (
	RoleSuperAdmin = "superadmin"
	RoleStaff      = "staff"
	RoleUser       = "user"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	IsActive     bool      `gorm:"not null;default:true"    json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is an opaque random credential, never parsed, only looked up
// verbatim. RevokedAt == nil means still usable; expiry is checked on use,
// nothing sweeps old rows.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"          json:"id"`
	Token     string     `gorm:"unique;not null"     json:"-"`
	UserID    uint       `gorm:"index;not null"      json:"user_id"`
	IssuedAt  time.Time  `gorm:"not null"            json:"issued_at"`
	ExpiresAt time.Time  `gorm:"not null"            json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}

type Space struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null"                 json:"name"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Capacity    uint    `json:"capacity"`
	HourlyRate  float64 `gorm:"not null"                 json:"hourly_rate"`
	ImageURL    string  `json:"image_url"`
	IsActive    bool    `gorm:"not null;default:true"    json:"is_active"`
}

type Equipment struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null"                 json:"name"`
	Description string  `json:"description"`
	HourlyRate  float64 `gorm:"not null"                 json:"hourly_rate"`
	Stock       uint    `json:"stock"`
}

const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
)

type Reservation struct {
	ID        uint                   `gorm:"primaryKey"               json:"id"`
	UserID    uint                   `gorm:"index;not null"           json:"user_id"`
	SpaceID   uint                   `gorm:"index;not null"           json:"space_id"`
	StartsAt  time.Time              `gorm:"not null"                 json:"starts_at"`
	EndsAt    time.Time              `gorm:"not null"                 json:"ends_at"`
	Status    string                 `gorm:"not null;default:pending" json:"status"`
	Total     float64                `json:"total"`
	CreatedAt time.Time              `json:"created_at"`
	Equipment []ReservationEquipment `gorm:"foreignKey:ReservationID" json:"equipment"`
}

type ReservationEquipment struct {
	ID            uint `gorm:"primaryKey"                 json:"id"`
	ReservationID uint `gorm:"index;not null"             json:"reservation_id"`
	EquipmentID   uint `gorm:"not null"                   json:"equipment_id"`
	Quantity      uint `gorm:"default:1;check:quantity>0" json:"quantity"`
}

type MembershipPlan struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Name            string  `gorm:"not null"   json:"name"`
	Price           float64 `gorm:"not null"   json:"price"`
	DurationDays    uint    `gorm:"not null"   json:"duration_days"`
	DiscountPercent uint    `json:"discount_percent"`
}

type Membership struct {
	ID       uint      `gorm:"primaryKey"     json:"id"`
	UserID   uint      `gorm:"index;not null" json:"user_id"`
	PlanID   uint      `gorm:"not null"       json:"plan_id"`
	StartsAt time.Time `gorm:"not null"       json:"starts_at"`
	EndsAt   time.Time `gorm:"not null"       json:"ends_at"`
}

type Payment struct {
	ID            uint      `gorm:"primaryKey"           json:"id"`
	UserID        uint      `gorm:"index;not null"       json:"user_id"`
	ReservationID uint      `gorm:"uniqueIndex;not null" json:"reservation_id"`
	Amount        float64   `gorm:"not null"             json:"amount"`
	Method        string    `json:"method"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokenPair is what every successful login/signup/refresh returns. Field
// names follow the public API contract, not the DB convention.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	ExpiresIn             int64     `json:"expiresIn"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiry"`
}
