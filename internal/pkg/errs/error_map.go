package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// Entries without an explicit Status are served as HTTP 200 with the business
// code carried in the JSON envelope.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Validation Rejections
	ErrChatNotFound:        {Code: ErrChatNotFound, Message: "Chat not found."},
	ErrChatInactive:        {Code: ErrChatInactive, Message: "This chat is no longer active."},
	ErrNotAMember:          {Code: ErrNotAMember, Message: "You are not a participant of this chat."},
	ErrNotAnAdmin:          {Code: ErrNotAnAdmin, Message: "Only chat admins can do that."},
	ErrMessageTooLong:      {Code: ErrMessageTooLong, Message: "Message is too long."},
	ErrMessageEmpty:        {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrMessageNotFound:     {Code: ErrMessageNotFound, Message: "Message not found."},
	ErrNotMessageSender:    {Code: ErrNotMessageSender, Message: "You can only change your own messages."},
	ErrChatTypeInvalid:     {Code: ErrChatTypeInvalid, Message: "Invalid chat type."},
	ErrParticipantsInvalid: {Code: ErrParticipantsInvalid, Message: "Invalid participant list."},
	ErrGroupFull:           {Code: ErrGroupFull, Message: "Group chats are limited to %d members."},

	// 3xxx: Auth and Identity Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found."},

	// 4xxx: Capacity Errors
	ErrCapacityExceeded: {Code: ErrCapacityExceeded, Message: "Server is at capacity. Please try again later.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal System Errors
	ErrUnknown:        {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrPersistFailure: {Code: ErrPersistFailure, Message: "Message could not be saved. Please resend.", Status: http.StatusInternalServerError},
}
