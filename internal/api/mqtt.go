package api

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/euklyde/iothink-core/internal/bridge"
)

// hookResponse is the body every broker hook endpoint returns. The field
// names are what the broker's external-auth plugin expects.
type hookResponse struct {
	Ok    bool   `json:"Ok"`
	Error string `json:"Error"`
}

// writeDecision maps a bridge decision onto the hook wire contract:
// 200 {Ok:true} on grant, 403 {Ok:false, Error} on deny. There is no 500;
// internal failures have already been converted to denies by the bridge.
func writeDecision(w http.ResponseWriter, dec bridge.Decision) {
	if dec.OK {
		writeJSON(w, http.StatusOK, hookResponse{Ok: true})
		return
	}
	writeJSON(w, http.StatusForbidden, hookResponse{Ok: false, Error: dec.Reason})
}

// hookParams parses the legacy hook payload, which the broker may send
// either form-encoded or as JSON. Missing fields come back empty; the
// bridge treats empty as deny, so no error path is needed here.
func hookParams(r *http.Request) map[string]string {
	params := map[string]string{}

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty on parse failure
	if contentType == "application/json" {
		//nolint:errcheck // malformed JSON leaves params empty, which denies
		json.NewDecoder(r.Body).Decode(&params)
		return params
	}

	//nolint:errcheck // malformed form leaves params empty, which denies
	r.ParseForm()
	for _, key := range []string{"username", "password", "topic"} {
		if v := r.PostFormValue(key); v != "" {
			params[key] = v
		}
	}
	return params
}

// aclTokenRequest is the JSON body of the token-variant ACL hook.
type aclTokenRequest struct {
	Topic string `json:"topic"`
}

// handleMQTTAuth answers the legacy CONNECT hook.
func (s *Server) handleMQTTAuth(w http.ResponseWriter, r *http.Request) {
	p := hookParams(r)
	writeDecision(w, s.bridge.Authenticate(r.Context(), p["username"], p["password"]))
}

// handleMQTTSuperuser answers the legacy superuser hook.
func (s *Server) handleMQTTSuperuser(w http.ResponseWriter, r *http.Request) {
	p := hookParams(r)
	writeDecision(w, s.bridge.Superuser(r.Context(), p["username"]))
}

// handleMQTTACL answers the legacy ACL hook.
func (s *Server) handleMQTTACL(w http.ResponseWriter, r *http.Request) {
	p := hookParams(r)
	writeDecision(w, s.bridge.CheckACL(r.Context(), p["username"], p["topic"]))
}

// handleMQTTAuthJWT answers the token CONNECT hook. The device JWT rides
// in the Authorization header; an absent header is simply an empty token,
// which the bridge denies.
func (s *Server) handleMQTTAuthJWT(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	writeDecision(w, s.bridge.AuthenticateToken(r.Context(), token))
}

// handleMQTTSuperuserJWT answers the token superuser hook.
func (s *Server) handleMQTTSuperuserJWT(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	writeDecision(w, s.bridge.SuperuserToken(r.Context(), token))
}

// handleMQTTACLJWT answers the token ACL hook.
func (s *Server) handleMQTTACLJWT(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)

	var req aclTokenRequest
	//nolint:errcheck // malformed body leaves the topic empty, which denies
	json.NewDecoder(r.Body).Decode(&req)

	writeDecision(w, s.bridge.CheckACLToken(r.Context(), token, req.Topic))
}
