/*
Package errs provides custom error types and application-level error code constants.

Codes are grouped by failure class: 1xxx request handling, 2xxx validation
rejections (nothing is written when these fire), 3xxx auth and identity,
4xxx capacity limits, 5xxx infrastructure failures.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after a valid JSON body.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the caller exceeded the request rate limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Validation Rejections (chat and message business rules)
const (
	// ErrChatNotFound indicates the referenced chat does not exist.
	ErrChatNotFound = 2001

	// ErrChatInactive indicates the referenced chat has been deactivated.
	ErrChatInactive = 2002

	// ErrNotAMember indicates the user is not a participant of the chat.
	ErrNotAMember = 2003

	// ErrNotAnAdmin indicates the operation requires chat admin rights.
	ErrNotAnAdmin = 2004

	// ErrMessageTooLong indicates message content exceeded the length bound.
	ErrMessageTooLong = 2005

	// ErrMessageEmpty indicates message content was empty.
	ErrMessageEmpty = 2006

	// ErrMessageNotFound indicates the referenced message does not exist.
	ErrMessageNotFound = 2007

	// ErrNotMessageSender indicates the caller did not author the message.
	ErrNotMessageSender = 2008

	// ErrChatTypeInvalid indicates an unsupported chat type on creation.
	ErrChatTypeInvalid = 2009

	// ErrParticipantsInvalid indicates a bad participant list on creation.
	ErrParticipantsInvalid = 2010

	// ErrGroupFull indicates the group reached its member capacity.
	ErrGroupFull = 2011
)

// 3xxx: Auth and Identity Errors
const (
	// ErrUnauthorized indicates a missing, invalid, or expired credential.
	ErrUnauthorized = 3001

	// ErrInvalidUsername indicates a username failing format rules.
	ErrInvalidUsername = 3002

	// ErrInvalidPassword indicates a password failing length rules.
	ErrInvalidPassword = 3003

	// ErrUserAlreadyExists indicates a registration conflict.
	ErrUserAlreadyExists = 3004

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = 3005

	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = 3006
)

// 4xxx: Capacity Errors
const (
	// ErrCapacityExceeded indicates the connection registry is at its limit.
	ErrCapacityExceeded = 4001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified server internal error.
	ErrUnknown = 5000

	// ErrPersistFailure indicates a content or metadata store write failed.
	// Nothing was broadcast; the sender may retry (a fresh message id is
	// assigned on retry).
	ErrPersistFailure = 5001
)
