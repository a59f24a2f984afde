package api

import (
	"net/http"

	"github.com/mkarlsen/scimgate/internal/scim"
)

// serviceProviderConfig is the static capability document served at
// /scim/v2/ServiceProviderConfig (RFC 7643 §5). Identity providers probe it
// before provisioning, so it is served without authentication.
const serviceProviderConfig = `{
  "schemas": ["urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"],
  "documentationUri": "https://scimgate.dev/docs/scim",
  "patch": {
    "supported": true
  },
  "bulk": {
    "supported": false,
    "maxOperations": 0,
    "maxPayloadSize": 0
  },
  "filter": {
    "supported": true,
    "maxResults": 100
  },
  "changePassword": {
    "supported": false
  },
  "sort": {
    "supported": false
  },
  "etag": {
    "supported": false
  },
  "authenticationSchemes": [
    {
      "type": "oauthbearertoken",
      "name": "OAuth Bearer Token",
      "description": "Authentication scheme using the OAuth Bearer Token standard",
      "specUri": "http://www.rfc-editor.org/info/rfc6750",
      "primary": true
    }
  ]
}`

// ServiceProviderConfigHandler returns the static SCIM service provider
// capability document.
func ServiceProviderConfigHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", scim.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(serviceProviderConfig))
}
