package store

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Event statuses as reported by the calendar provider.
const (
	EventStatusConfirmed = "confirmed"
	EventStatusTentative = "tentative"
	EventStatusCancelled = "cancelled"
)

// maxEventDate is the upper bound of the provider's representable
// timestamp range (2038-01-19). Events past it fail validation.
var maxEventDate = time.Date(2038, time.January, 19, 0, 0, 0, 0, time.UTC)

var entityValidator = newEntityValidator()

func newEntityValidator() *validator.Validate {
	v := validator.New()
	// Always succeeds at registration time; the tag name is static.
	_ = v.RegisterValidation("providerdate", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !t.After(maxEventDate)
	})
	return v
}

func validateEntity(entity any) error {
	if err := entityValidator.Struct(entity); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// Credential holds the token pair for one provider account. It is
// refreshed in place; the sync engine never deletes it.
type Credential struct {
	ID             string     `json:"id"`
	AccessToken    string     `json:"-" validate:"required,max=500"`
	RefreshToken   string     `json:"-" validate:"required,max=500"`
	ExternalUserID string     `json:"external_user_id" validate:"required,max=255"`
	ExternalEmail  string     `json:"external_email" validate:"required,email,max=255"`
	ExpiredAt      *time.Time `json:"expired_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks field-level constraints before persistence.
func (c *Credential) Validate() error {
	return validateEntity(c)
}

// ResourceCalendar is a bookable resource (room) owned by one
// credential. NextSyncToken empty means no prior successful sync.
type ResourceCalendar struct {
	ID                    string    `json:"id"`
	CredentialID          string    `json:"credential_id" validate:"required"`
	ResourceID            string    `json:"resource_id" validate:"required,max=255"`
	ResourceName          string    `json:"resource_name" validate:"required,max=255"`
	GeneratedResourceName string    `json:"generated_resource_name" validate:"max=255"`
	ResourceEmail         string    `json:"resource_email" validate:"required,max=255"`
	ResourceType          string    `json:"resource_type" validate:"max=255"`
	ResourceCategory      string    `json:"resource_category" validate:"max=255"`
	Capacity              int       `json:"capacity"`
	BuildingID            string    `json:"building_id" validate:"max=255"`
	FloorName             string    `json:"floor_name" validate:"max=255"`
	Etag                  string    `json:"etag" validate:"max=255"`
	NextSyncToken         string    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Validate checks field-level constraints before persistence.
func (rc *ResourceCalendar) Validate() error {
	return validateEntity(rc)
}

// Event belongs to one resource calendar and is identified by
// (CalendarID, ExternalID). Cancellation flips Status, never deletes.
type Event struct {
	ID          string     `json:"id"`
	CalendarID  string     `json:"calendar_id" validate:"required"`
	ExternalID  string     `json:"external_id" validate:"required,max=255"`
	Summary     string     `json:"summary" validate:"max=255"`
	Description string     `json:"description"`
	Status      string     `json:"status" validate:"required,max=255"`
	Etag        string     `json:"etag" validate:"max=255"`
	ICalUID     string     `json:"ical_uid" validate:"max=255"`
	Location    string     `json:"location" validate:"max=255"`
	Organizer   string     `json:"organizer" validate:"max=255"`
	Creator     string     `json:"creator" validate:"max=255"`
	Sequence    *int64     `json:"sequence"`
	Start       *time.Time `json:"start" validate:"required,providerdate"`
	End         *time.Time `json:"end" validate:"required,providerdate"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks field-level constraints before persistence.
func (e *Event) Validate() error {
	return validateEntity(e)
}

// Participant is a person identified by email, shared across events.
type Participant struct {
	ID        string    `json:"id"`
	Email     string    `json:"email" validate:"required,email"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks field-level constraints before persistence.
func (p *Participant) Validate() error {
	return validateEntity(p)
}

// Attend joins an event with a participant. IsResource marks the room
// resource itself appearing in the attendee list.
type Attend struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id" validate:"required"`
	ParticipantID  string    `json:"participant_id" validate:"required"`
	ResponseStatus string    `json:"response_status" validate:"required,max=255"`
	IsResource     bool      `json:"is_resource"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks field-level constraints before persistence.
func (a *Attend) Validate() error {
	return validateEntity(a)
}

// Subscription is a push-notification channel registered for one
// resource calendar. Renewal replaces the row; the provider issues a
// fresh identifier every time.
type Subscription struct {
	ID          string     `json:"id"`
	CalendarID  string     `json:"calendar_id" validate:"required"`
	ChannelUUID string     `json:"channel_uuid" validate:"required,max=255"`
	ExternalID  string     `json:"external_id" validate:"required,max=255"`
	ResourceID  string     `json:"resource_id" validate:"required,max=255"`
	Kind        string     `json:"kind" validate:"max=255"`
	Expiration  *time.Time `json:"expiration"`
	IsUpToDate  bool       `json:"is_up_to_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks field-level constraints before persistence.
func (s *Subscription) Validate() error {
	return validateEntity(s)
}
