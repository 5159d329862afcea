package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveCredential inserts the credential when it has no ID yet,
// otherwise updates the existing row in place.
func (s *Store) SaveCredential(c *Credential) error {
	now := time.Now().UTC()
	c.UpdatedAt = now

	if c.ID == "" {
		c.ID = uuid.New().String()
		c.CreatedAt = now

		query := `INSERT INTO credentials (id, access_token, refresh_token, external_user_id, external_email, expired_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.conn.Exec(query, c.ID, c.AccessToken, c.RefreshToken, c.ExternalUserID, c.ExternalEmail, nullableTime(c.ExpiredAt), c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create credential: %w", err)
		}
		return nil
	}

	query := `UPDATE credentials SET access_token = ?, refresh_token = ?, external_user_id = ?, external_email = ?, expired_at = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.conn.Exec(query, c.AccessToken, c.RefreshToken, c.ExternalUserID, c.ExternalEmail, nullableTime(c.ExpiredAt), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return requireAffected(result)
}

// GetCredentialByID returns a credential by its ID.
func (s *Store) GetCredentialByID(id string) (*Credential, error) {
	query := credentialSelect + ` WHERE id = ?`
	return scanCredential(s.conn.QueryRow(query, id))
}

// GetCredentialByEmail returns a credential by its external account email.
func (s *Store) GetCredentialByEmail(email string) (*Credential, error) {
	query := credentialSelect + ` WHERE external_email = ?`
	return scanCredential(s.conn.QueryRow(query, email))
}

// ListCredentials returns all credentials.
func (s *Store) ListCredentials() ([]*Credential, error) {
	rows, err := s.conn.Query(credentialSelect + ` ORDER BY external_email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// ListExpiredCredentials returns credentials whose expiry has passed
// or was never recorded. Both need a proactive refresh.
func (s *Store) ListExpiredCredentials(now time.Time) ([]*Credential, error) {
	query := credentialSelect + ` WHERE expired_at IS NULL OR expired_at < ?`
	rows, err := s.conn.Query(query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query expired credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

const credentialSelect = `SELECT id, access_token, refresh_token, external_user_id, external_email, expired_at, created_at, updated_at FROM credentials`

func scanCredential(row *sql.Row) (*Credential, error) {
	c := &Credential{}
	var expiredAt sql.NullTime
	err := row.Scan(&c.ID, &c.AccessToken, &c.RefreshToken, &c.ExternalUserID, &c.ExternalEmail, &expiredAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}
	if expiredAt.Valid {
		c.ExpiredAt = &expiredAt.Time
	}
	return c, nil
}

func collectCredentials(rows *sql.Rows) ([]*Credential, error) {
	var creds []*Credential
	for rows.Next() {
		c := &Credential{}
		var expiredAt sql.NullTime
		err := rows.Scan(&c.ID, &c.AccessToken, &c.RefreshToken, &c.ExternalUserID, &c.ExternalEmail, &expiredAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		if expiredAt.Valid {
			c.ExpiredAt = &expiredAt.Time
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}
	return creds, nil
}

// SaveResourceCalendar inserts or updates a resource calendar.
func (s *Store) SaveResourceCalendar(rc *ResourceCalendar) error {
	now := time.Now().UTC()
	rc.UpdatedAt = now

	if rc.ID == "" {
		rc.ID = uuid.New().String()
		rc.CreatedAt = now

		query := `INSERT INTO resource_calendars (id, credential_id, resource_id, resource_name, generated_resource_name,
			resource_email, resource_type, resource_category, capacity, building_id, floor_name, etag, next_sync_token, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.conn.Exec(query,
			rc.ID, rc.CredentialID, rc.ResourceID, rc.ResourceName, rc.GeneratedResourceName,
			rc.ResourceEmail, rc.ResourceType, rc.ResourceCategory, rc.Capacity, rc.BuildingID,
			rc.FloorName, rc.Etag, nullableString(rc.NextSyncToken), rc.CreatedAt, rc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create resource calendar: %w", err)
		}
		return nil
	}

	query := `UPDATE resource_calendars SET credential_id = ?, resource_id = ?, resource_name = ?, generated_resource_name = ?,
		resource_email = ?, resource_type = ?, resource_category = ?, capacity = ?, building_id = ?, floor_name = ?,
		etag = ?, next_sync_token = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.conn.Exec(query,
		rc.CredentialID, rc.ResourceID, rc.ResourceName, rc.GeneratedResourceName,
		rc.ResourceEmail, rc.ResourceType, rc.ResourceCategory, rc.Capacity, rc.BuildingID,
		rc.FloorName, rc.Etag, nullableString(rc.NextSyncToken), rc.UpdatedAt, rc.ID)
	if err != nil {
		return fmt.Errorf("failed to update resource calendar: %w", err)
	}
	return requireAffected(result)
}

// GetResourceCalendarByID returns a resource calendar by its ID.
func (s *Store) GetResourceCalendarByID(id string) (*ResourceCalendar, error) {
	query := calendarSelect + ` WHERE id = ?`
	return scanCalendar(s.conn.QueryRow(query, id))
}

// GetResourceCalendarByResourceID returns a resource calendar by the
// provider-assigned resource identifier.
func (s *Store) GetResourceCalendarByResourceID(resourceID string) (*ResourceCalendar, error) {
	query := calendarSelect + ` WHERE resource_id = ?`
	return scanCalendar(s.conn.QueryRow(query, resourceID))
}

// ListResourceCalendars returns all resource calendars.
func (s *Store) ListResourceCalendars() ([]*ResourceCalendar, error) {
	rows, err := s.conn.Query(calendarSelect + ` ORDER BY resource_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource calendars: %w", err)
	}
	defer rows.Close()

	var calendars []*ResourceCalendar
	for rows.Next() {
		rc, err := scanCalendarFromRows(rows)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resource calendars: %w", err)
	}
	return calendars, nil
}

const calendarSelect = `SELECT id, credential_id, resource_id, resource_name, generated_resource_name,
	resource_email, resource_type, resource_category, capacity, building_id, floor_name, etag, next_sync_token,
	created_at, updated_at FROM resource_calendars`

func scanCalendar(row *sql.Row) (*ResourceCalendar, error) {
	rc := &ResourceCalendar{}
	var generatedName, resourceType, resourceCategory, buildingID, floorName, etag, syncToken sql.NullString
	err := row.Scan(
		&rc.ID, &rc.CredentialID, &rc.ResourceID, &rc.ResourceName, &generatedName,
		&rc.ResourceEmail, &resourceType, &resourceCategory, &rc.Capacity, &buildingID,
		&floorName, &etag, &syncToken, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource calendar: %w", err)
	}
	fillCalendarNullables(rc, generatedName, resourceType, resourceCategory, buildingID, floorName, etag, syncToken)
	return rc, nil
}

func scanCalendarFromRows(rows *sql.Rows) (*ResourceCalendar, error) {
	rc := &ResourceCalendar{}
	var generatedName, resourceType, resourceCategory, buildingID, floorName, etag, syncToken sql.NullString
	err := rows.Scan(
		&rc.ID, &rc.CredentialID, &rc.ResourceID, &rc.ResourceName, &generatedName,
		&rc.ResourceEmail, &resourceType, &resourceCategory, &rc.Capacity, &buildingID,
		&floorName, &etag, &syncToken, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource calendar: %w", err)
	}
	fillCalendarNullables(rc, generatedName, resourceType, resourceCategory, buildingID, floorName, etag, syncToken)
	return rc, nil
}

func fillCalendarNullables(rc *ResourceCalendar, generatedName, resourceType, resourceCategory, buildingID, floorName, etag, syncToken sql.NullString) {
	rc.GeneratedResourceName = generatedName.String
	rc.ResourceType = resourceType.String
	rc.ResourceCategory = resourceCategory.String
	rc.BuildingID = buildingID.String
	rc.FloorName = floorName.String
	rc.Etag = etag.String
	rc.NextSyncToken = syncToken.String
}

// SaveEvent inserts or updates an event.
func (s *Store) SaveEvent(e *Event) error {
	now := time.Now().UTC()
	e.UpdatedAt = now

	if e.ID == "" {
		e.ID = uuid.New().String()
		e.CreatedAt = now

		query := `INSERT INTO events (id, calendar_id, external_id, summary, description, status, etag, ical_uid,
			location, organizer, creator, sequence, start_at, end_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.conn.Exec(query,
			e.ID, e.CalendarID, e.ExternalID, e.Summary, e.Description, e.Status, e.Etag, e.ICalUID,
			e.Location, e.Organizer, e.Creator, nullableInt(e.Sequence), nullableTime(e.Start), nullableTime(e.End),
			e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		return nil
	}

	query := `UPDATE events SET summary = ?, description = ?, status = ?, etag = ?, ical_uid = ?, location = ?,
		organizer = ?, creator = ?, sequence = ?, start_at = ?, end_at = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.conn.Exec(query,
		e.Summary, e.Description, e.Status, e.Etag, e.ICalUID, e.Location,
		e.Organizer, e.Creator, nullableInt(e.Sequence), nullableTime(e.Start), nullableTime(e.End),
		e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireAffected(result)
}

// GetEventByExternalID returns the event identified by the calendar
// and the provider-assigned event ID.
func (s *Store) GetEventByExternalID(calendarID, externalID string) (*Event, error) {
	query := eventSelect + ` WHERE calendar_id = ? AND external_id = ?`
	row := s.conn.QueryRow(query, calendarID, externalID)

	e, err := scanEvent(row)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEventsByCalendar returns all events of a resource calendar.
func (s *Store) ListEventsByCalendar(calendarID string) ([]*Event, error) {
	query := eventSelect + ` WHERE calendar_id = ? ORDER BY start_at`
	rows, err := s.conn.Query(query, calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := scanEventFields(rows.Scan, e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

const eventSelect = `SELECT id, calendar_id, external_id, summary, description, status, etag, ical_uid,
	location, organizer, creator, sequence, start_at, end_at, created_at, updated_at FROM events`

func scanEvent(row *sql.Row) (*Event, error) {
	e := &Event{}
	if err := scanEventFields(row.Scan, e); err != nil {
		return nil, err
	}
	return e, nil
}

func scanEventFields(scan func(...any) error, e *Event) error {
	var summary, description, etag, icalUID, location, organizer, creator sql.NullString
	var sequence sql.NullInt64
	var start, end sql.NullTime

	err := scan(
		&e.ID, &e.CalendarID, &e.ExternalID, &summary, &description, &e.Status, &etag, &icalUID,
		&location, &organizer, &creator, &sequence, &start, &end, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to scan event: %w", err)
	}

	e.Summary = summary.String
	e.Description = description.String
	e.Etag = etag.String
	e.ICalUID = icalUID.String
	e.Location = location.String
	e.Organizer = organizer.String
	e.Creator = creator.String
	if sequence.Valid {
		e.Sequence = &sequence.Int64
	}
	if start.Valid {
		t := start.Time
		e.Start = &t
	}
	if end.Valid {
		t := end.Time
		e.End = &t
	}
	return nil
}

// GetOrCreateParticipant returns the participant with the given email,
// creating it when absent.
func (s *Store) GetOrCreateParticipant(email string) (*Participant, error) {
	p, err := s.GetParticipantByEmail(email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p = &Participant{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query := `INSERT INTO participants (id, email, created_at) VALUES (?, ?, ?)`
	if _, err := s.conn.Exec(query, p.ID, p.Email, p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return p, nil
}

// GetParticipantByEmail returns a participant by email.
func (s *Store) GetParticipantByEmail(email string) (*Participant, error) {
	query := `SELECT id, email, created_at FROM participants WHERE email = ?`
	row := s.conn.QueryRow(query, email)

	p := &Participant{}
	err := row.Scan(&p.ID, &p.Email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// CountParticipants returns the total number of participants.
func (s *Store) CountParticipants() (int, error) {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM participants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// DeleteAttendees removes every attendee row of an event. Used before
// re-inserting the full attendee set on sync.
func (s *Store) DeleteAttendees(eventID string) error {
	if _, err := s.conn.Exec(`DELETE FROM attendees WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("failed to delete attendees: %w", err)
	}
	return nil
}

// CreateAttend inserts a single attendee row.
func (s *Store) CreateAttend(a *Attend) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	query := `INSERT INTO attendees (id, event_id, participant_id, response_status, is_resource, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.conn.Exec(query, a.ID, a.EventID, a.ParticipantID, a.ResponseStatus, a.IsResource, a.CreatedAt); err != nil {
		return fmt.Errorf("failed to create attendee: %w", err)
	}
	return nil
}

// ListAttendeesByEvent returns all attendee rows of an event.
func (s *Store) ListAttendeesByEvent(eventID string) ([]*Attend, error) {
	query := `SELECT id, event_id, participant_id, response_status, is_resource, created_at
		FROM attendees WHERE event_id = ?`
	rows, err := s.conn.Query(query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendees: %w", err)
	}
	defer rows.Close()

	var attendees []*Attend
	for rows.Next() {
		a := &Attend{}
		if err := rows.Scan(&a.ID, &a.EventID, &a.ParticipantID, &a.ResponseStatus, &a.IsResource, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendees: %w", err)
	}
	return attendees, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}
