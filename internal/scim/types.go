package scim

// SCIM 2.0 schema URNs (RFC 7643 / RFC 7644).
const (
	SchemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaPatchOp      = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
	SchemaError        = "urn:ietf:params:scim:api:messages:2.0:Error"
)

// ContentType is the media type used on all SCIM responses.
const ContentType = "application/scim+json"

// UserResource is the wire representation of a SCIM User.
type UserResource struct {
	Schemas     []string `json:"schemas"`
	ID          string   `json:"id"`
	ExternalID  string   `json:"externalId,omitempty"`
	UserName    string   `json:"userName"`
	Name        Name     `json:"name"`
	DisplayName string   `json:"displayName"`
	Emails      []Email  `json:"emails"`
	Active      bool     `json:"active"`
	Meta        Meta     `json:"meta"`
}

// Name is the SCIM name sub-attribute set.
type Name struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

// Email is a single SCIM email entry.
type Email struct {
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// Meta is the SCIM resource metadata block.
type Meta struct {
	ResourceType string `json:"resourceType"`
	Created      string `json:"created"`
	LastModified string `json:"lastModified"`
	Location     string `json:"location,omitempty"`
}

// ListResponse is the wire shape of a SCIM list result.
type ListResponse struct {
	Schemas      []string       `json:"schemas"`
	TotalResults int            `json:"totalResults"`
	StartIndex   int            `json:"startIndex"`
	ItemsPerPage int            `json:"itemsPerPage"`
	Resources    []UserResource `json:"Resources"`
}

// UserInput is the request body accepted by Create and Replace. Active uses a
// pointer so an omitted value can be told apart from an explicit false.
type UserInput struct {
	Schemas    []string   `json:"schemas"`
	UserName   string     `json:"userName"`
	ExternalID string     `json:"externalId"`
	Name       *NameInput `json:"name"`
	Emails     []Email    `json:"emails"`
	Active     *bool      `json:"active"`
}

// NameInput is the name block on incoming payloads. Pointers distinguish
// absent sub-attributes from empty strings.
type NameInput struct {
	GivenName  *string `json:"givenName"`
	FamilyName *string `json:"familyName"`
}

// PatchOp is the request body accepted by Patch.
type PatchOp struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// PatchOperation is a single entry in a PatchOp. Value is left untyped
// because identity providers send both scalars (flattened paths) and whole
// objects (bulk form).
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// ListParams are the query parameters of the list operation.
type ListParams struct {
	StartIndex int
	Count      int
	Filter     string
}
