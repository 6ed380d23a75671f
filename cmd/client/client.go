// Console client that walks the whole selective disclosure flow against a
// running demo server: issue a credential, open a verification session,
// release a claim subset, verify the presentation.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/kokukuma/sdjwt-demo/internal/server"
)

var serverURL = "http://localhost:8080"

func init() {
	if url := os.Getenv("SERVER_URL"); url != "" {
		serverURL = url
	}
}

func main() {
	username := "john_doe"
	disclosed := []string{"given_name", "address.locality"}

	var issued server.IssueResponse
	if err := post("/issue", server.IssueRequest{Username: username}, &issued); err != nil {
		log.Fatal("issue: ", err)
	}
	fmt.Println("=== issued credential")
	spew.Dump(issued)

	var session server.StartVerificationResponse
	if err := post("/startVerification", struct{}{}, &session); err != nil {
		log.Fatal("startVerification: ", err)
	}
	fmt.Println("=== verification session")
	spew.Dump(session)

	var release server.CreateReleaseResponse
	err := post("/createRelease", server.CreateReleaseRequest{
		SessionID: session.SessionID,
		Username:  username,
		Claims:    disclosed,
	}, &release)
	if err != nil {
		log.Fatal("createRelease: ", err)
	}
	fmt.Println("=== combined presentation")
	fmt.Println(release.Presentation)

	var verified server.VerifyResponse
	err = post("/verifyPresentation", server.VerifyRequest{
		SessionID:    session.SessionID,
		Presentation: release.Presentation,
	}, &verified)
	if err != nil {
		log.Fatal("verifyPresentation: ", err)
	}
	fmt.Println("=== disclosed claims seen by the verifier")
	spew.Dump(verified.Claims)
}

func post(path string, req, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpResp, err := http.Post(serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var failure server.VerifyResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&failure); err == nil && failure.Error != "" {
			return fmt.Errorf("%s: %s", httpResp.Status, failure.Error)
		}
		return fmt.Errorf("unexpected status: %s", httpResp.Status)
	}

	return json.NewDecoder(httpResp.Body).Decode(resp)
}
