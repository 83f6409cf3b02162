package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/covestack/covestack/pkg/logger"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleStart redirects the browser into Google's authorization flow.
func (h *Handler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	if clientID == "" {
		writeMessage(w, http.StatusInternalServerError, "Google OAuth is not configured")
		return
	}

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", googleCallbackURI())
	q.Set("response_type", "code")
	q.Set("scope", "profile email")
	http.Redirect(w, r, googleAuthURL+"?"+q.Encode(), http.StatusFound)
}

// GoogleCallback exchanges the authorization code, fetches the profile,
// upserts the user and installs a session cookie.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeMessage(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	accessToken, err := exchangeGoogleCode(code)
	if err != nil {
		logger.Sugar.Errorf("Google oauth callback failed: %v", err)
		writeMessage(w, http.StatusBadRequest, "OAuth error")
		return
	}

	profile, err := fetchGoogleProfile(accessToken)
	if err != nil {
		logger.Sugar.Errorf("Failed to fetch Google profile: %v", err)
		writeMessage(w, http.StatusBadRequest, "Failed to fetch Google profile")
		return
	}
	if profile.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Google profile missing email")
		return
	}
	name := profile.Name
	if name == "" {
		name = profile.Email
	}

	user, err := h.Repo.UpsertUser(r.Context(), profile.Email, name)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	session, err := SignSession(user)
	if err != nil {
		logger.Sugar.Errorf("Failed to sign session: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	SetSessionCookie(w, session)

	http.Redirect(w, r, frontendOrigin()+"/dashboard", http.StatusFound)
}

type googleProfile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func exchangeGoogleCode(code string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", os.Getenv("GOOGLE_CLIENT_ID"))
	form.Set("client_secret", os.Getenv("GOOGLE_CLIENT_SECRET"))
	form.Set("redirect_uri", googleCallbackURI())
	form.Set("grant_type", "authorization_code")

	resp, err := http.PostForm(googleTokenURL, form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("access token missing from response")
	}
	return token.AccessToken, nil
}

func fetchGoogleProfile(accessToken string) (*googleProfile, error) {
	req, err := http.NewRequest(http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func googleCallbackURI() string {
	base := os.Getenv("PUBLIC_API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	return strings.TrimRight(base, "/") + "/auth/google/callback"
}

func frontendOrigin() string {
	if v := os.Getenv("FRONTEND_ORIGIN"); v != "" {
		return v
	}
	return "http://localhost:5173"
}
