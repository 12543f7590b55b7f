package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/trezcool/ibdp/core/auth"
	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/tests"
)

var (
	errAuthRequired = httpErr{Error: "authentication required", Redirect: "/login"}
	errPermDenied   = httpErr{Error: "permission denied"}
	errInvalidCreds = httpErr{Error: "invalid credentials"}
	msgUserCreated  = map[string]string{"message": "User created successfully"}
	adminIdentity   = auth.Identity{ID: "admin-001", Email: testutil.AdminEmail, DisplayName: "System Administrator", Role: user.RoleAdmin}
)

type httpErr struct {
	Error    string            `json:"error"`
	Redirect string            `json:"redirect,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

// resetDB empties the store; every test that writes starts with it.
func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
}

// createUser registers a user and returns a session token for it.
func createUser(t *testing.T, first, last, email string, role user.Role) (user.User, string) {
	usr, profile := testutil.CreateUser(t, usrSvc, first, last, email, role)
	return usr, getToken(t, auth.Identity{
		ID:          usr.ID,
		Email:       usr.Email,
		DisplayName: usr.DisplayName(),
		Role:        usr.Role,
		Profile:     profile,
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatalf("sessionCookie(): no session cookie in %v", rec.Header())
	return nil
}

func getToken(t *testing.T, id auth.Identity) string {
	token, _, err := issuer.Issue(id)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func addAssessment(t *testing.T, studentID string, score, maxScore float64) {
	_, err := usrSvc.AddAssessment(context.Background(), user.Assessment{
		StudentID: studentID,
		Subject:   "Mathematics",
		Title:     "Paper 1",
		Score:     score,
		MaxScore:  maxScore,
	})
	if err != nil {
		t.Fatalf("addAssessment() failed: %v", err)
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
