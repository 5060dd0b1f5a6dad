// Package v1 defines the VivahVows REST contract consumed by the Go client.
//
// Types mirror the backend serializers field-for-field. Request types carry
// only the fields a client may write; pointer fields mark optional PATCH
// members so that an unset field is omitted rather than zeroed.
package v1
