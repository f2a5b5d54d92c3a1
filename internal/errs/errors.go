// Package errs defines the failure families returned by the lifecycle engine.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that know how to render themselves
type HTTPError interface {
	error
	HTTPStatus() int
	HTTPCode() string
}

// AuthorizationDenied is returned when the caller lacks the role or relationship
// for a capability right now. Reason describes the caller's own situation only.
type AuthorizationDenied struct {
	Capability string
	Reason     string
}

func (e *AuthorizationDenied) Error() string {
	return fmt.Sprintf("not allowed to %s: %s", e.Capability, e.Reason)
}

func (e *AuthorizationDenied) HTTPStatus() int  { return http.StatusForbidden }
func (e *AuthorizationDenied) HTTPCode() string { return "FORBIDDEN" }

// Denied creates an AuthorizationDenied
func Denied(capability, reason string) error {
	return &AuthorizationDenied{Capability: capability, Reason: reason}
}

// DomainRuleViolation is returned when a change is structurally illegal
// regardless of who asks.
type DomainRuleViolation struct {
	Rule    string
	Message string
}

func (e *DomainRuleViolation) Error() string {
	return e.Message
}

func (e *DomainRuleViolation) HTTPStatus() int  { return http.StatusUnprocessableEntity }
func (e *DomainRuleViolation) HTTPCode() string { return e.Rule }

// Violation creates a DomainRuleViolation
func Violation(rule, format string, args ...any) error {
	return &DomainRuleViolation{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// NotFound is returned when a referenced entity does not exist
type NotFound struct {
	Resource string
	ID       string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFound) HTTPStatus() int  { return http.StatusNotFound }
func (e *NotFound) HTTPCode() string { return "NOT_FOUND" }

// NewNotFound creates a NotFound
func NewNotFound(resource, id string) error {
	return &NotFound{Resource: resource, ID: id}
}

// InvalidInput is returned when a request value is malformed
type InvalidInput struct {
	Field   string
	Message string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InvalidInput) HTTPStatus() int  { return http.StatusBadRequest }
func (e *InvalidInput) HTTPCode() string { return "INVALID_INPUT" }

// Invalid creates an InvalidInput
func Invalid(field, message string) error {
	return &InvalidInput{Field: field, Message: message}
}

// IsDenied reports whether err is an AuthorizationDenied
func IsDenied(err error) bool {
	var target *AuthorizationDenied
	return errors.As(err, &target)
}

// IsViolation reports whether err is a DomainRuleViolation
func IsViolation(err error) bool {
	var target *DomainRuleViolation
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFound
func IsNotFound(err error) bool {
	var target *NotFound
	return errors.As(err, &target)
}

// IsInvalid reports whether err is an InvalidInput
func IsInvalid(err error) bool {
	var target *InvalidInput
	return errors.As(err, &target)
}

// Rule identifiers carried by DomainRuleViolation
const (
	RuleVerifyNeedsPR       = "VERIFY_REQUIRES_PULL_REQUEST"
	RuleDoneNeedsPR         = "DONE_REQUIRES_PULL_REQUEST"
	RuleDoneNeedsMerge      = "DONE_REQUIRES_MERGED_PULL_REQUESTS"
	RuleDoneNeedsEstimation = "DONE_REQUIRES_ESTIMATION"
	RuleDoneNeedsChildren   = "DONE_REQUIRES_CHILDREN_DONE"
	RuleStoryStatusDerived  = "USER_STORY_STATUS_DERIVED"
	RuleStoryEstimation     = "USER_STORY_ESTIMATION_DERIVED"
	RuleTypeLocked          = "TYPE_LOCKED"
	RuleSubtaskNotStory     = "SUBTASK_CANNOT_BE_USER_STORY"
	RuleDeleteStoryChildren = "DELETE_USER_STORY_WITH_CHILDREN"
	RuleDeleteStatus        = "DELETE_STATUS"
	RuleAlreadyAssigned     = "ALREADY_ASSIGNED"
	RuleNotAssigned         = "NOT_ASSIGNED"
	RuleSubtaskParent       = "SUBTASK_PARENT_NOT_USER_STORY"
	RuleEstimationPositive  = "ESTIMATION_NOT_POSITIVE"
	RuleSprintProject       = "SPRINT_OUTSIDE_PROJECT"
	RuleSprintRange         = "SPRINT_DATE_RANGE"
	RuleSprintClosed        = "SPRINT_CLOSED"
	RuleAssigneeNotMember   = "ASSIGNEE_NOT_PROJECT_MEMBER"
	RuleReporterNotMember   = "REPORTER_NOT_PROJECT_MEMBER"
	RuleAlreadyFrozen       = "ALREADY_FROZEN"
	RuleNotFrozen           = "NOT_FROZEN"
	RuleSubtaskType         = "SUBTASK_TYPE"
	RuleStoryPullRequest    = "USER_STORY_PULL_REQUEST"
)
