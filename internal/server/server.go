// Package server wires the three protocol roles into one demo HTTP
// server: it issues SD-JWT credentials for seeded users, plays wallet by
// building releases from stored containers, and verifies the resulting
// presentations. In a real deployment these are three parties; keeping
// them in one process keeps the demo self-contained, like the reference
// flow this repo grew out of.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/go-jose/go-jose/v3"

	"github.com/kokukuma/sdjwt-demo/internal/model"
	"github.com/kokukuma/sdjwt-demo/sdjwt"
	"github.com/kokukuma/sdjwt-demo/token"
)

const defaultIssuerID = "https://issuer.sdjwt-demo.example.com"

func issuerID() string {
	if id := os.Getenv("ISSUER_ID"); id != "" {
		return id
	}
	return defaultIssuerID
}

type Server struct {
	users    *model.Users
	sessions *Sessions

	issuerID  string
	issuer    *sdjwt.Issuer
	issuerJWK *jose.JSONWebKey

	// wallet side of the demo: the holder key and the issued credentials
	holder    *sdjwt.Holder
	holderJWK *jose.JSONWebKey

	mu     sync.RWMutex
	wallet map[string]*sdjwt.Credential
}

func NewServer() *Server {
	users, err := model.Seed()
	if err != nil {
		panic("failed to seed users: " + err.Error())
	}

	issuerKey, err := loadOrGenKey("ISSUER_PRIVATE_KEY_PATH")
	if err != nil {
		panic("failed to load issuer key: " + err.Error())
	}
	issuerSigner, err := token.NewSigner(issuerKey, token.DefaultAlgorithm)
	if err != nil {
		panic("failed to create issuer signer: " + err.Error())
	}

	holderKey, err := loadOrGenKey("HOLDER_PRIVATE_KEY_PATH")
	if err != nil {
		panic("failed to load holder key: " + err.Error())
	}
	holderSigner, err := token.NewSigner(holderKey, token.DefaultAlgorithm)
	if err != nil {
		panic("failed to create holder signer: " + err.Error())
	}

	id := issuerID()
	return &Server{
		users:     users,
		sessions:  NewSessions(),
		issuerID:  id,
		issuer:    sdjwt.NewIssuer(id, issuerSigner),
		issuerJWK: token.PublicJWK(issuerKey, token.DefaultAlgorithm),
		holder:    sdjwt.NewHolder(holderSigner),
		holderJWK: token.PublicJWK(holderKey, token.DefaultAlgorithm),
		wallet:    make(map[string]*sdjwt.Credential),
	}
}

type IssueRequest struct {
	Username string `json:"username"`
}

type IssueResponse struct {
	SDJWT   string                 `json:"sd_jwt"`
	Payload map[string]interface{} `json:"payload"`
	Claims  []string               `json:"claims"`
}

// IssueCredential issues an SD-JWT for a seeded user and stores the
// credential in the demo wallet. The disclosure container never leaves
// the wallet side, so the response only carries the signed token.
func (s *Server) IssueCredential(w http.ResponseWriter, r *http.Request) {
	req := IssueRequest{}
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	user, err := s.users.GetUser(req.Username)
	if err != nil {
		jsonError(w, http.StatusNotFound, err)
		return
	}

	cred, err := s.issuer.Issue(user.Claims(), sdjwt.Branch{}, s.holderJWK)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err)
		return
	}

	s.mu.Lock()
	s.wallet[user.Name()] = cred
	s.mu.Unlock()

	jsonResponse(w, IssueResponse{
		SDJWT:   cred.SDJWT,
		Payload: cred.Payload,
		Claims:  user.ClaimNames(),
	})
}

type StartVerificationResponse struct {
	SessionID string `json:"session_id"`
	Nonce     string `json:"nonce"`
	Audience  string `json:"audience"`
}

// StartVerification opens a verification session and hands out the nonce
// the holder must bind its release to.
func (s *Server) StartVerification(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.NewSession(s.issuerID + "/verifier")

	jsonResponse(w, StartVerificationResponse{
		SessionID: session.ID,
		Nonce:     session.Nonce,
		Audience:  session.Audience,
	})
}

type CreateReleaseRequest struct {
	SessionID string   `json:"session_id"`
	Username  string   `json:"username"`
	Claims    []string `json:"claims"`
}

type CreateReleaseResponse struct {
	Presentation string `json:"presentation"`
}

// CreateRelease plays the wallet: it picks the stored credential, builds a
// release for the chosen claim names and returns the combined
// presentation.
func (s *Server) CreateRelease(w http.ResponseWriter, r *http.Request) {
	req := CreateReleaseRequest{}
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	session, err := s.sessions.GetSession(req.SessionID)
	if err != nil {
		jsonError(w, http.StatusNotFound, err)
		return
	}

	user, err := s.users.GetUser(req.Username)
	if err != nil {
		jsonError(w, http.StatusNotFound, err)
		return
	}

	s.mu.RLock()
	cred, ok := s.wallet[user.Name()]
	s.mu.RUnlock()
	if !ok {
		jsonError(w, http.StatusNotFound, errNoCredential)
		return
	}

	disclose, err := user.SelectClaims(req.Claims)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	release, err := s.holder.CreateRelease(session.Nonce, session.Audience, disclose, cred.Container)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	jsonResponse(w, CreateReleaseResponse{
		Presentation: sdjwt.CombinedFormat(cred.SDJWT, release.Token),
	})
}

type VerifyRequest struct {
	SessionID    string `json:"session_id"`
	Presentation string `json:"presentation"`
}

type VerifyResponse struct {
	Claims map[string]interface{} `json:"claims,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// VerifyPresentation checks a combined presentation against the session's
// nonce with full holder binding and returns the disclosed claims.
func (s *Server) VerifyPresentation(w http.ResponseWriter, r *http.Request) {
	req := VerifyRequest{}
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	session, err := s.sessions.GetSession(req.SessionID)
	if err != nil {
		jsonError(w, http.StatusNotFound, err)
		return
	}

	verifier := sdjwt.NewVerifier(s.issuerJWK, s.issuerID,
		sdjwt.WithHolderBinding(s.holderJWK, session.Audience, session.Nonce),
	)

	disclosed, err := verifier.Verify(req.Presentation)
	if err != nil {
		log.Println("verification failed:", err)
		jsonError(w, http.StatusBadRequest, err)
		return
	}

	jsonResponse(w, VerifyResponse{Claims: disclosed.ToMap()})
}

// JWKS serves the issuer's public key set so external verifiers can check
// SD-JWT signatures themselves.
func (s *Server) JWKS(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{*s.issuerJWK},
	})
}

var errNoCredential = errors.New("no credential issued for user")

func parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("failed to write response:", err)
	}
}

func jsonError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(VerifyResponse{Error: err.Error()}); err != nil {
		log.Println("failed to write error response:", err)
	}
}
