package extractor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

func source(rel, content string) port.SourceFile {
	return port.SourceFile{RepoID: "svc", Path: "/work/svc/" + rel, RelFile: rel, Content: content}
}

// endpointKeys renders endpoints as "METHOD path framework line".
func endpointKeys(eps []domain.Endpoint) []string {
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = fmt.Sprintf("%s %s %s %d", ep.Method, ep.Path, ep.Framework, ep.Line)
	}
	return out
}

func endpoints(rel, content string) []domain.Endpoint {
	return New(nil).ExtractEndpoints(source(rel, content))
}

func TestExpressRoutes(t *testing.T) {
	t.Parallel()
	content := "const app = express();\n" +
		"app.get('/users/:id', handler);\n" +
		"router.post(\"/orders\", create);\n" +
		"axios.get('/not/a/route');\n" +
		"headers.get('/x');\n"

	got := endpoints("src/server.js", content)
	assert.ElementsMatch(t, []string{
		"GET /users/:id express 2",
		"POST /orders express 3",
	}, endpointKeys(got))

	for _, ep := range got {
		assert.Equal(t, "svc", ep.RepoID)
		assert.Equal(t, "src/server.js", ep.RelFile)
		assert.Equal(t, "/work/svc/src/server.js", ep.File)
		assert.Equal(t, domain.SourceCode, ep.SourceType)
	}
}

func TestObjectCallRejectsAbsoluteURLs(t *testing.T) {
	t.Parallel()
	content := "server.get('http://example.com/users', h);\n" +
		"server.get(`/users/${id}`, h);\n" +
		"server.get('users', h);\n"
	assert.Empty(t, endpoints("index.ts", content))
}

func TestPythonDecorators(t *testing.T) {
	t.Parallel()
	content := "@app.route(\"/items\", methods=[\"GET\", \"POST\"])\n" +
		"def items(): pass\n" +
		"@app.route('/health')\n" +
		"def health(): pass\n" +
		"@router.get(\"/users/{user_id}\")\n" +
		"async def user(user_id: int): pass\n"

	assert.ElementsMatch(t, []string{
		"GET /items flask 1",
		"POST /items flask 1",
		"GET /health flask 3",
		"GET /users/{user_id} fastapi 5",
	}, endpointKeys(endpoints("app/main.py", content)))
}

func TestNestControllerPrefix(t *testing.T) {
	t.Parallel()
	content := "@Controller('orders')\n" +
		"export class OrdersController {\n" +
		"  @Get(':id')\n" +
		"  find() {}\n" +
		"  @Post()\n" +
		"  create() {}\n" +
		"}\n"

	assert.ElementsMatch(t, []string{
		"GET /orders/:id nestjs 3",
		"POST /orders nestjs 5",
	}, endpointKeys(endpoints("src/orders.controller.ts", content)))
}

func TestSpringMappings(t *testing.T) {
	t.Parallel()
	content := "@RestController\n" +
		"@RequestMapping(\"/api/users\")\n" +
		"public class UserController {\n" +
		"    @GetMapping(\"/{id}\")\n" +
		"    public User get(@PathVariable long id) { return null; }\n" +
		"    @PostMapping\n" +
		"    public User create() { return null; }\n" +
		"    @RequestMapping(value = \"/search\", method = RequestMethod.GET)\n" +
		"    public List<User> search() { return null; }\n" +
		"}\n"

	assert.ElementsMatch(t, []string{
		"GET /api/users/{id} spring 4",
		"POST /api/users spring 6",
		"GET /api/users/search spring 8",
	}, endpointKeys(endpoints("src/main/java/UserController.java", content)))
}

func TestAspNetAttributes(t *testing.T) {
	t.Parallel()
	content := "[ApiController]\n" +
		"[Route(\"api/[controller]\")]\n" +
		"public class ProductsController : ControllerBase\n" +
		"{\n" +
		"    [HttpGet(\"{id}\")]\n" +
		"    public IActionResult Get(int id) => Ok();\n" +
		"    [HttpPost]\n" +
		"    public IActionResult Create() => Ok();\n" +
		"    [HttpDelete(\"/admin/products/{id}\")]\n" +
		"    public IActionResult Purge(int id) => Ok();\n" +
		"}\n"

	assert.ElementsMatch(t, []string{
		"GET /api/products/{id} aspnet 5",
		"POST /api/products aspnet 7",
		"DELETE /admin/products/{id} aspnet 9",
	}, endpointKeys(endpoints("Controllers/ProductsController.cs", content)))
}

func TestGoRouters(t *testing.T) {
	t.Parallel()
	content := "mux.HandleFunc(\"GET /items/{id}\", getItem)\n" +
		"r.GET(\"/ping\", ping)\n" +
		"cr.Get(\"/users\", listUsers)\n" +
		"m.HandleFunc(\"/books/{id}\", book).Methods(\"GET\", \"PUT\")\n" +
		"m.HandleFunc(\"/anything\", any)\n"

	assert.ElementsMatch(t, []string{
		"GET /items/{id} net/http 1",
		"GET /ping gin 2",
		"GET /users chi 3",
		"GET /books/{id} gorilla/mux 4",
		"PUT /books/{id} gorilla/mux 4",
	}, endpointKeys(endpoints("cmd/api/routes.go", content)))
}

func TestLaravelAndSinatra(t *testing.T) {
	t.Parallel()
	php := "<?php\n" +
		"Route::get('/posts', [PostController::class, 'index']);\n" +
		"Route::any('/hook', fn () => null);\n"
	assert.ElementsMatch(t, []string{
		"GET /posts laravel 2",
		"ALL /hook laravel 3",
	}, endpointKeys(endpoints("routes/api.php", php)))

	rb := "get '/hello' do\n" +
		"  'hi'\n" +
		"end\n" +
		"post \"/items\" do\n" +
		"end\n"
	assert.ElementsMatch(t, []string{
		"GET /hello sinatra 1",
		"POST /items sinatra 4",
	}, endpointKeys(endpoints("app.rb", rb)))
}

func TestOpenAPIJSON(t *testing.T) {
	t.Parallel()
	content := "{\n" +
		"  \"openapi\": \"3.0.0\",\n" +
		"  \"paths\": {\n" +
		"    \"/pets\": {\n" +
		"      \"get\": {},\n" +
		"      \"post\": {}\n" +
		"    },\n" +
		"    \"/pets/{petId}\": {\n" +
		"\t\t\"get\": {},\n" +
		"      \"parameters\": []\n" +
		"    }\n" +
		"  }\n" +
		"}\n"

	got := endpoints("api/openapi.json", content)
	assert.ElementsMatch(t, []string{
		"GET /pets openapi 4",
		"POST /pets openapi 4",
		"GET /pets/{petId} openapi 8",
	}, endpointKeys(got))
	for _, ep := range got {
		assert.Equal(t, domain.SourceOpenAPI, ep.SourceType)
	}
}

func TestSwaggerYAMLBasePath(t *testing.T) {
	t.Parallel()
	content := "swagger: \"2.0\"\n" +
		"basePath: /v1\n" +
		"paths:\n" +
		"  /users:\n" +
		"    get:\n" +
		"      summary: list\n" +
		"    delete:\n" +
		"      summary: purge\n"

	assert.ElementsMatch(t, []string{
		"GET /v1/users openapi 4",
		"DELETE /v1/users openapi 4",
	}, endpointKeys(endpoints("docs/swagger.yaml", content)))
}

func TestOpenAPINonMatching(t *testing.T) {
	t.Parallel()
	assert.Empty(t, endpoints("broken.json", `{"openapi": "3.0.0", "paths": {`))
	assert.Empty(t, endpoints("config.yaml", "paths:\n  /x:\n    get: {}\n"))
	assert.Empty(t, endpoints("openapi.md", "openapi: 3.0.0\npaths:\n  /x:\n    get: {}\n"))
}

type fixedRule struct {
	name string
	hits []EndpointHit
}

func (r fixedRule) Name() string {
	return r.name
}

func (r fixedRule) FindEndpoints(port.SourceFile) []EndpointHit {
	return r.hits
}

func TestDedupFirstRuleWins(t *testing.T) {
	t.Parallel()
	hit := EndpointHit{Line: 3, Methods: []string{"GET"}, Path: "/a"}
	first, second := hit, hit
	first.Framework = "first"
	second.Framework = "second"
	other := EndpointHit{Line: 4, Methods: []string{"GET"}, Path: "/a", Framework: "second"}

	rules := []EndpointRule{
		fixedRule{name: "one", hits: []EndpointHit{first}},
		fixedRule{name: "two", hits: []EndpointHit{second, other}},
	}
	got := ExtractEndpointsWith(rules, source("x.js", ""), "")
	assert.Equal(t, []string{"GET /a first 3", "GET /a second 4"}, endpointKeys(got))
}

func TestEndpointIDsStable(t *testing.T) {
	t.Parallel()
	content := "app.get('/a', h);\napp.get('/a', h);\n"

	first := endpoints("a.js", content)
	second := endpoints("a.js", content)
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0].ID, first[1].ID)
	assert.Equal(t, hashID("svc", "express", "GET", "/a", "a.js", "1"), first[0].ID)
}

func TestFeatureLabels(t *testing.T) {
	t.Parallel()
	x := New([]FeatureRule{
		{Name: "billing", Include: []string{"src/billing/**"}, Exclude: []string{"**/*.spec.ts"}},
		{Name: "core", Include: []string{"src/**"}},
	})
	content := "app.get('/invoices', h);\n"

	billing := x.ExtractEndpoints(source("src/billing/routes.ts", content))
	require.Len(t, billing, 1)
	assert.Equal(t, "billing", billing[0].Feature)

	spec := x.ExtractEndpoints(source("src/billing/routes.spec.ts", content))
	require.Len(t, spec, 1)
	assert.Equal(t, "core", spec[0].Feature)

	none := x.ExtractEndpoints(source("lib/routes.ts", content))
	require.Len(t, none, 1)
	assert.Empty(t, none[0].Feature)
}
