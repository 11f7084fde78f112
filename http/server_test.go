package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blogd/auth"
	"blogd/crud"
	"blogd/database/memory"
)

type testServer struct {
	*httptest.Server
	tokens *auth.JWT
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tokens, err := auth.NewJWT("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	services, err := crud.NewServices(memory.New(),
		crud.WithUser(auth.NewBcrypt("test-pepper", bcrypt.MinCost), tokens),
		crud.WithPost(),
		crud.WithLike())
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(zerolog.Nop(), auth.NewGuard(tokens), services))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, tokens: tokens}
}

// do sends a request and decodes the json response into out, if given.
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rdr = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			rdr = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type userBody struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

type loginBody struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"`
	User      userBody `json:"user"`
}

type postBody struct {
	ID          string `json:"id"`
	AuthorID    string `json:"authorId"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ImageRef    string `json:"imageRef"`
	Author      struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
	LikesCount  int  `json:"likesCount"`
	LikedByUser bool `json:"likedByUser"`
}

type likeBody struct {
	Message     string `json:"message"`
	LikesCount  int    `json:"likesCount"`
	LikedByUser bool   `json:"likedByUser"`
}

func (ts *testServer) login(t *testing.T, username string) loginBody {
	t.Helper()
	creds := map[string]string{"username": username, "password": "pw123456"}
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/auth/register", "", creds, nil))
	var lb loginBody
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/auth/login", "", creds, &lb))
	return lb
}

func TestEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	creds := map[string]string{"username": "alice", "password": "pw123456"}

	var reg struct {
		Message string                 `json:"message"`
		User    map[string]interface{} `json:"user"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/auth/register", "", creds, &reg))
	assert.Equal(t, "alice", reg.User["username"])
	assert.NotContains(t, reg.User, "passwordHash")
	assert.NotContains(t, reg.User, "password")

	var lb loginBody
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/auth/login", "", creds, &lb))
	require.NotEmpty(t, lb.Token)
	assert.EqualValues(t, 3600, lb.ExpiresIn)
	assert.Equal(t, reg.User["id"], lb.User.ID)

	var created postBody
	status := ts.do(t, "POST", "/posts", lb.Token, map[string]string{
		"title": "Hello", "body": "First post", "imageRef": "img/hello.png",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, lb.User.ID, created.AuthorID)
	assert.Equal(t, lb.User.ID, created.Author.ID)
	assert.Equal(t, "alice", created.Author.Username)
	assert.Zero(t, created.LikesCount)

	var liked likeBody
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/posts/"+created.ID+"/like", lb.Token, nil, &liked))
	assert.Equal(t, likeBody{Message: "Liked.", LikesCount: 1, LikedByUser: true}, liked)

	var got postBody
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts/"+created.ID, lb.Token, nil, &got))
	assert.Equal(t, 1, got.LikesCount)
	assert.True(t, got.LikedByUser)

	// Anonymous viewers see the count but never a like of their own.
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts/"+created.ID, "", nil, &got))
	assert.Equal(t, 1, got.LikesCount)
	assert.False(t, got.LikedByUser)

	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/posts/"+created.ID+"/like", lb.Token, nil, &liked))
	assert.Equal(t, likeBody{Message: "Unliked.", LikesCount: 0, LikedByUser: false}, liked)

	var list []postBody
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts", "", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Hello", list[0].Title)
	assert.Equal(t, lb.User.ID, list[0].Author.ID)
	assert.Equal(t, "alice", list[0].Author.Username)

	var raw map[string]interface{}
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts/"+created.ID, "", nil, &raw))
	assert.Equal(t, map[string]interface{}{"id": lb.User.ID, "username": "alice"}, raw["author"])
}

func TestAuthErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.login(t, "alice")

	expired, err := auth.NewJWT("0123456789abcdef0123456789abcdef", time.Hour,
		auth.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	require.NoError(t, err)
	expiredToken, err := expired.Issue(alice.User.ID)
	require.NoError(t, err)

	foreign, err := auth.NewJWT("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)
	foreignToken, err := foreign.Issue(alice.User.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"no header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"garbage token", "Bearer garbage", http.StatusForbidden, "forbidden"},
		{"expired token", "Bearer " + expiredToken, http.StatusForbidden, "forbidden"},
		{"foreign key", "Bearer " + foreignToken, http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest("GET", ts.URL+"/posts/mine", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := ts.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestLoginErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	var wrongPassword, unknownUser errorBody
	status := ts.do(t, "POST", "/auth/login", "", map[string]string{"username": "alice", "password": "nope-nope"}, &wrongPassword)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = ts.do(t, "POST", "/auth/login", "", map[string]string{"username": "bob", "password": "pw123456"}, &unknownUser)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, wrongPassword, unknownUser)

	var invalid errorBody
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/auth/login", "", "{not json", &invalid))
	assert.Equal(t, errorBody{Code: "invalid", Message: "Invalid json body."}, invalid)
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	var body errorBody
	status := ts.do(t, "POST", "/auth/register", "", map[string]string{"username": "alice", "password": "pw123456"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "conflict", body.Code)

	status = ts.do(t, "POST", "/auth/register", "", map[string]string{"username": "bob", "password": "short"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid", body.Code)

	huge := `{"username":"` + strings.Repeat("a", MaxBodyBytes) + `","password":"pw123456"}`
	status = ts.do(t, "POST", "/auth/register", "", huge, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid", body.Code)
}

func TestPostErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.login(t, "alice")

	var body errorBody
	status := ts.do(t, "POST", "/posts", "", map[string]string{"title": "t", "body": "b", "imageRef": "i"}, &body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = ts.do(t, "POST", "/posts", alice.Token, map[string]string{"body": "b", "imageRef": "i"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid", body.Code)

	status = ts.do(t, "GET", "/posts/"+uuid.NewString(), "", nil, &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body.Code)

	status = ts.do(t, "POST", "/posts/"+uuid.NewString()+"/like", alice.Token, nil, &body)
	assert.Equal(t, http.StatusNotFound, status)

	status = ts.do(t, "POST", "/posts/whatever/like", "", nil, &body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = ts.do(t, "GET", "/posts?limit=zero", "", nil, &body)
	assert.Equal(t, http.StatusBadRequest, status)

	status = ts.do(t, "GET", "/nowhere", "", nil, &body)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	var body errorBody
	status := ts.do(t, "DELETE", "/health", "", nil, &body)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, errorBody{Code: "method_not_allowed", Message: "Method not allowed."}, body)
}

func TestMyPostsAndPaging(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.login(t, "alice")
	bob := ts.login(t, "bob")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/posts", alice.Token,
			map[string]string{"title": fmt.Sprintf("a%d", i), "body": "b", "imageRef": "i"}, nil))
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/posts", bob.Token,
		map[string]string{"title": "b0", "body": "b", "imageRef": "i"}, nil))

	var mine []postBody
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts/mine", alice.Token, nil, &mine))
	require.Len(t, mine, 3)
	assert.Equal(t, "a2", mine[0].Title)

	var page []postBody
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts?offset=1&limit=2", "", nil, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "a2", page[0].Title)
	assert.Equal(t, "a1", page[1].Title)
}

func TestConcurrentLikes(t *testing.T) {
	ts := newTestServer(t)
	author := ts.login(t, "author")
	var post postBody
	require.Equal(t, http.StatusCreated, ts.do(t, "POST", "/posts", author.Token,
		map[string]string{"title": "popular", "body": "b", "imageRef": "i"}, &post))

	const n = 10
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = ts.login(t, fmt.Sprintf("fan%d", i)).Token
	}

	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			req, err := http.NewRequest("POST", ts.URL+"/posts/"+post.ID+"/like", nil)
			if !assert.NoError(t, err) {
				return
			}
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := ts.Client().Do(req)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}(token)
	}
	wg.Wait()

	var got postBody
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/posts/"+post.ID, "", nil, &got))
	assert.Equal(t, n, got.LikesCount)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]bool
	require.Equal(t, http.StatusOK, ts.do(t, "GET", "/health", "", nil, &body))
	assert.True(t, body["ok"])
}
