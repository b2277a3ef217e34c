// Package resource describes remote resources and the records stored in them.
//
// Every resource on the remote API is addressed as
//
//	http[s]://instance/api/v2/SERVICE_NAME/RESOURCE_KIND/RESOURCE_NAME/RESOURCE_ID
//
// A Locator carries those segments plus the query parameters used when
// retrieving records. Records are exchanged with the API inside a
// {"resource": [...]} envelope; Encode and Decode convert between Go structs
// and the plain maps found in that envelope.
package resource
