// internal/functions/notify/registry.go
package notify

import (
	"context"
	"fmt"

	"congregation-functions/internal/models"
)

// recipientRule resolves one side (to or cc) of an event's recipient lists.
type recipientRule func(ctx context.Context, dir *Directory, data map[string]interface{}) ([]models.Recipient, error)

// eventEntry binds an event type to its email template, subject line, and
// recipient rules. The registry is the single source of truth for which
// event types exist; a type without an entry is rejected before any
// database work happens.
type eventEntry struct {
	TemplateID string
	Subject    string
	To         recipientRule
	CC         recipientRule
}

// defaultCC sends a copy to the oversight roles unless the entry overrides it.
func defaultCC(ctx context.Context, dir *Directory, _ map[string]interface{}) ([]models.Recipient, error) {
	return dir.MembersWithRoles(ctx, models.RoleElder, models.RoleApostle)
}

func noCC(_ context.Context, _ *Directory, _ map[string]interface{}) ([]models.Recipient, error) {
	return nil, nil
}

func toRoles(roles ...string) recipientRule {
	return func(ctx context.Context, dir *Directory, _ map[string]interface{}) ([]models.Recipient, error) {
		return dir.MembersWithRoles(ctx, roles...)
	}
}

func toDepartmentLeads(ctx context.Context, dir *Directory, data map[string]interface{}) ([]models.Recipient, error) {
	id, err := requiredField(data, "department_id")
	if err != nil {
		return nil, err
	}
	return dir.LeadsOfDepartment(ctx, id)
}

func toMinistryLeads(ctx context.Context, dir *Directory, data map[string]interface{}) ([]models.Recipient, error) {
	id, err := requiredField(data, "ministry_id")
	if err != nil {
		return nil, err
	}
	return dir.LeadsOfMinistry(ctx, id)
}

func toNamedDepartmentLeads(name string) recipientRule {
	return func(ctx context.Context, dir *Directory, _ map[string]interface{}) ([]models.Recipient, error) {
		return dir.LeadsOfDepartmentNamed(ctx, name)
	}
}

// toEventMember addresses the member named inside the event payload itself.
// Used by digests, where the recipient is computed upstream.
func toEventMember(_ context.Context, _ *Directory, data map[string]interface{}) ([]models.Recipient, error) {
	email, err := requiredField(data, "member_email")
	if err != nil {
		return nil, err
	}
	name, _ := stringField(data, "member_name")
	return []models.Recipient{{Email: email, Name: name}}, nil
}

var eventRegistry = map[string]eventEntry{
	TypeDepartmentJoinRequest: {
		TemplateID: "department-join-request",
		Subject:    "New Department Join Request",
		To:         toDepartmentLeads,
		CC:         defaultCC,
	},
	TypeMinistryJoinRequest: {
		TemplateID: "ministry-join-request",
		Subject:    "New Ministry Join Request",
		To:         toMinistryLeads,
		CC:         defaultCC,
	},
	TypeSuggestion: {
		TemplateID: "suggestion",
		Subject:    "New Suggestion",
		To:         toRoles(models.RoleElder),
		CC:         defaultCC,
	},
	TypeSupportRequest: {
		TemplateID: "support-request",
		Subject:    "New Support Request",
		To:         toRoles(models.RoleElder),
		CC:         defaultCC,
	},
	TypeDonation: {
		TemplateID: "donation",
		Subject:    "New Donation",
		To:         toRoles(models.RoleElder),
		CC:         toRoles(models.RoleApostle),
	},
	TypeContactSubmission: {
		TemplateID: "contact-submission",
		Subject:    "New Contact Submission",
		To:         toRoles(models.RoleDeacon),
		CC:         defaultCC,
	},
	TypePrayerRequest: {
		TemplateID: "prayer-request",
		Subject:    "New Prayer Request",
		To:         toNamedDepartmentLeads(DepartmentIntercession),
		CC:         defaultCC,
	},
	TypeTestimonyRequest: {
		TemplateID: "testimony-request",
		Subject:    "New Testimony Request",
		To:         toNamedDepartmentLeads(DepartmentModeration),
		CC:         defaultCC,
	},
	TypeWeeklyDigest: {
		TemplateID: "weekly-digest",
		Subject:    "Weekly Digest",
		To:         toRoles(models.RoleElder, models.RoleApostle),
		CC:         noCC,
	},
	TypeBoardSummary: {
		TemplateID: "board-summary",
		Subject:    "Your Board Activity Summary",
		To:         toEventMember,
		CC:         noCC,
	},
}

// LookupEvent returns the registry entry for an event type.
func LookupEvent(eventType string) (eventEntry, bool) {
	entry, ok := eventRegistry[eventType]
	return entry, ok
}

func stringField(data map[string]interface{}, key string) (string, bool) {
	v, ok := data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func requiredField(data map[string]interface{}, key string) (string, error) {
	s, ok := stringField(data, key)
	if !ok {
		return "", fmt.Errorf("eventData is missing required field %q", key)
	}
	return s, nil
}
