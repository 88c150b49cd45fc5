package extractor

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomesh/internal/domain"
)

// usageKeys renders usages as "METHOD endpointPath tool line"; an unknown
// method renders as "-".
func usageKeys(us []domain.Usage) []string {
	out := make([]string, len(us))
	for i, u := range us {
		m := u.Method
		if m == "" {
			m = "-"
		}
		out[i] = fmt.Sprintf("%s %s %s %d", m, u.EndpointPath, u.Tool, u.Line)
	}
	return out
}

func usages(rel, content string) []domain.Usage {
	return New(nil).ExtractUsages(source(rel, content))
}

func TestFetchUsages(t *testing.T) {
	t.Parallel()
	content := "await fetch('/api/orders?draft=1', { method: 'POST', body });\n" +
		"const res = await fetch(`${API_URL}/users/${id}`);\n"

	got := usages("web/src/api.ts", content)
	assert.ElementsMatch(t, []string{
		"POST /api/orders fetch 1",
		"- /${API_URL}/users/${id} fetch 2",
	}, usageKeys(got))
	for _, u := range got {
		assert.Empty(t, u.URL)
	}
}

func TestAxiosAbsoluteURLDedup(t *testing.T) {
	t.Parallel()
	content := "const order = await axios.get('http://repoB:3002/orders/:id');\n"

	got := usages("src/client.js", content)
	require.Len(t, got, 1)
	u := got[0]
	assert.Equal(t, "axios", u.Tool)
	assert.Equal(t, domain.MethodGet, u.Method)
	assert.Equal(t, "/orders/:id", u.EndpointPath)
	assert.Equal(t, "http://repoB:3002/orders/:id", u.URL)
	assert.Equal(t, 1, u.Line)
	assert.Equal(t, "const order = await axios.get('http://repoB:3002/orders/:id');", u.Snippet)
}

func TestAxiosForms(t *testing.T) {
	t.Parallel()
	content := "axios('/api/items', { method: 'put' });\n" +
		"axios({ method: 'delete', url: '/api/items/1' });\n" +
		"axios.request({\n" +
		"  url: '/api/items/2',\n" +
		"});\n"

	assert.ElementsMatch(t, []string{
		"PUT /api/items axios 1",
		"DELETE /api/items/1 axios 2",
		"- /api/items/2 axios 4",
	}, usageKeys(usages("src/items.ts", content)))
}

func TestClientWrappers(t *testing.T) {
	t.Parallel()
	content := "this.http.get<User[]>('/api/users');\n" +
		"this.http.post('/api/users', body);\n" +
		"$http.delete('/api/users/' + id);\n" +
		"https.get('https://status.internal:8443/health');\n" +
		"http.request('/internal/metrics');\n"

	assert.ElementsMatch(t, []string{
		"GET /api/users http-client 1",
		"POST /api/users http-client 2",
		"DELETE /api/users/ http-client 3",
		"GET /health http 4",
		"- /internal/metrics http 5",
	}, usageKeys(usages("src/app.service.ts", content)))
}

func TestPythonClients(t *testing.T) {
	t.Parallel()
	content := "resp = requests.post(f\"{BASE_URL}/payments\", json=body)\n" +
		"items = httpx.get(\"http://inventory:8000/v1/items\")\n" +
		"self.session.delete('/api/carts/1')\n"

	got := usages("svc/clients.py", content)
	assert.ElementsMatch(t, []string{
		"POST /{BASE_URL}/payments requests 1",
		"GET /v1/items httpx 2",
		"DELETE /api/carts/1 requests 3",
	}, usageKeys(got))
}

func TestGoClients(t *testing.T) {
	t.Parallel()
	content := "resp, err := http.Get(\"http://users:8080/users/1\")\n" +
		"req, _ := http.NewRequestWithContext(ctx, http.MethodDelete, \"http://users:8080/users/1\", nil)\n" +
		"req2, _ := http.NewRequest(\"PATCH\", `/users/2`, body)\n" +
		"r.Get(\"/users\", list)\n"

	assert.ElementsMatch(t, []string{
		"GET /users/1 net/http 1",
		"DELETE /users/1 net/http 2",
		"PATCH /users/2 net/http 3",
	}, usageKeys(usages("internal/client/users.go", content)))
}

func TestJavaClients(t *testing.T) {
	t.Parallel()
	content := "Invoice inv = restTemplate.getForObject(\"http://billing/api/invoices/{id}\", Invoice.class, id);\n" +
		"restTemplate.exchange(\"/api/invoices\", HttpMethod.POST, entity, Invoice.class);\n" +
		"webClient.get().uri(\"/api/customers/{id}\", id).retrieve();\n" +
		"webClient.method(HttpMethod.PUT).uri(\"/api/customers\").retrieve();\n"

	assert.ElementsMatch(t, []string{
		"GET /api/invoices/{id} resttemplate 1",
		"POST /api/invoices resttemplate 2",
		"GET /api/customers/{id} webclient 3",
		"PUT /api/customers webclient 4",
	}, usageKeys(usages("src/main/java/Clients.java", content)))
}

func TestAbsoluteURLFilter(t *testing.T) {
	t.Parallel()
	content := "const docs = \"https://example.com/docs/getting-started\";\n" +
		"const img = \"https://cdn.example.com/logo.png\";\n" +
		"const svc = \"https://payments.example.com/v2/charges?limit=5\";\n" +
		"const local = 'http://localhost:4000/health';\n" +
		"const gql = 'https://shop.example.com/graphql';\n"

	got := usages("src/config.js", content)
	assert.ElementsMatch(t, []string{
		"- /v2/charges url 3",
		"- /health url 4",
		"- /graphql url 5",
	}, usageKeys(got))
	for _, u := range got {
		assert.NotEmpty(t, u.URL)
	}
}

func TestUsageIDs(t *testing.T) {
	t.Parallel()
	content := "fetch('/a');\nfetch('/a', { method: 'GET' });\n"

	got := usages("a.js", content)
	require.Len(t, got, 2)
	assert.Equal(t, hashID("svc", "fetch", "/a", "a.js", "1", "UNK"), got[0].ID)
	assert.Equal(t, hashID("svc", "fetch", "/a", "a.js", "2", "GET"), got[1].ID)
	assert.Equal(t, got, usages("a.js", content))
}

func TestLooksLikeAPI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		url  string
		want bool
	}{
		{"http://svc:3001/users", true},
		{"https://svc:443/users", false},
		{"https://api.example.com/v1/users", true},
		{"https://example.com/api/users", true},
		{"https://example.com/users/{id}", true},
		{"https://example.com/about", false},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looksLikeAPI(tt.url), tt.url)
	}
}

func TestSameLineCallsWithDifferentMethods(t *testing.T) {
	t.Parallel()
	content := "axios.get('/api/items'); axios.delete('/api/items');\n"

	got := usages("a.js", content)
	assert.Equal(t, []string{"GET /api/items axios 1", "DELETE /api/items axios 1"}, usageKeys(got))
}

func TestSnippetKeepsRunesWhole(t *testing.T) {
	t.Parallel()
	line := "fetch('http://svc:3001/api/v1/x') // " + strings.Repeat("é", maxSnippet)

	got := usages("a.js", line+"\n")
	require.Len(t, got, 1)
	assert.True(t, utf8.ValidString(got[0].Snippet))
	assert.LessOrEqual(t, len(got[0].Snippet), maxSnippet)
	assert.True(t, strings.HasPrefix(got[0].Snippet, "fetch('http://svc:3001/api/v1/x')"))
}
