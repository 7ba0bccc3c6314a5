package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alextreichler/qrmenu/internal/auth"
	"github.com/alextreichler/qrmenu/internal/images"
	"github.com/alextreichler/qrmenu/internal/menu"
	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/orders"
	"github.com/alextreichler/qrmenu/internal/realtime"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	t       *testing.T
	handler http.Handler
	auth    *auth.Service
	hub     *realtime.Hub
	uploads string
}

func newTestEnv(t *testing.T, rateWindow time.Duration) *testEnv {
	t.Helper()
	db, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	uploads := t.TempDir()
	host, err := images.NewLocalHost(uploads, "http://localhost:5000")
	if err != nil {
		t.Fatal(err)
	}
	hub := realtime.NewHub(16)
	authSvc := auth.NewService(db)
	authSvc.Cost = bcrypt.MinCost

	mux := NewRouter(Deps{
		Menu:       menu.NewService(db, host),
		Orders:     orders.NewService(db, hub),
		Auth:       authSvc,
		Sessions:   sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		Store:      db,
		Hub:        hub,
		UploadDir:  uploads,
		MenuURL:    "http://localhost:3000/menu",
		RateWindow: rateWindow,
	})
	return &testEnv{t: t, handler: mux, auth: authSvc, hub: hub, uploads: uploads}
}

func (e *testEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, cookies)
}

// login creates a user with role and returns its session cookies.
func (e *testEnv) login(role string) []*http.Cookie {
	e.t.Helper()
	email := role + "@example.com"
	if _, err := e.auth.CreateUser(context.Background(), role, email, "password123", role); err != nil {
		e.t.Fatal(err)
	}
	rec := e.doJSON(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "password123"}, nil)
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	return rec.Result().Cookies()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[errorBody](t, rec).Message
}

var johnsOrder = map[string]any{
	"customerName":  "John Doe",
	"customerEmail": "john@example.com",
	"items":         []map[string]any{{"_id": "i1", "name": "Burger", "price": 12.99, "quantity": 2}},
	"total":         25.98,
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t, 0)
	sub := env.hub.Subscribe()
	defer sub.Close()

	rec := env.doJSON(http.MethodPost, "/api/orders", johnsOrder, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	order := decode[models.Order](t, rec)
	if !regexp.MustCompile(`^ORD-[A-Z0-9]{6}$`).MatchString(order.OrderCode) {
		t.Errorf("orderCode = %q", order.OrderCode)
	}
	if order.Status != models.StatusPending {
		t.Errorf("status = %q", order.Status)
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != realtime.KindNewOrder {
			t.Errorf("event kind = %q", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no newOrder event")
	}

	rec = env.doJSON(http.MethodGet, "/api/orders/"+order.ID, nil, nil)
	if rec.Code != http.StatusOK || decode[models.Order](t, rec).OrderCode != order.OrderCode {
		t.Errorf("GET order: %d %s", rec.Code, rec.Body)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	tests := []struct {
		name string
		body string
	}{
		{"missing items", `{"customerName":"A","customerEmail":"a@b.co","total":1}`},
		{"empty items", `{"customerName":"A","customerEmail":"a@b.co","items":[],"total":1}`},
		{"missing total", `{"customerName":"A","customerEmail":"a@b.co","items":[{"_id":"i","name":"n","price":1,"quantity":1}]}`},
		{"malformed json", `{"customerName":`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body))
			rec := env.do(req, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if message(t, rec) == "" {
				t.Errorf("error body has no message")
			}
		})
	}
}

func TestOrderNotFound(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.doJSON(http.MethodGet, "/api/orders/does-not-exist", nil, nil)
	if rec.Code != http.StatusNotFound || message(t, rec) != "Order not found" {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t, 0)
	admin := env.login(models.RoleAdmin)
	order := decode[models.Order](t, env.doJSON(http.MethodPost, "/api/orders", johnsOrder, nil))
	path := "/api/orders/" + order.ID + "/status"

	rec := env.doJSON(http.MethodPut, path, map[string]string{"status": "in-progress"}, admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("in-progress: status = %d, want 400", rec.Code)
	}

	rec = env.doJSON(http.MethodPut, path, map[string]string{"status": "preparing"}, admin)
	if rec.Code != http.StatusOK || decode[models.Order](t, rec).Status != models.StatusPreparing {
		t.Fatalf("preparing: %d %s", rec.Code, rec.Body)
	}

	rec = env.doJSON(http.MethodPatch, path, map[string]string{"status": "pending"}, admin)
	if rec.Code != http.StatusConflict {
		t.Errorf("preparing -> pending: status = %d, want 409", rec.Code)
	}

	rec = env.doJSON(http.MethodPut, "/api/orders/missing/status", map[string]string{"status": "ready"}, admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing order: status = %d, want 404", rec.Code)
	}

	current := decode[models.Order](t, env.doJSON(http.MethodGet, "/api/orders/"+order.ID, nil, nil))
	if current.Status != models.StatusPreparing {
		t.Errorf("status after rejected updates = %q", current.Status)
	}
}

func TestAdminGates(t *testing.T) {
	env := newTestEnv(t, 0)
	customer := env.login(models.RoleCustomer)
	admin := env.login(models.RoleAdmin)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/orders/stats"},
		{http.MethodPut, "/api/orders/x/status"},
		{http.MethodPost, "/api/menu"},
		{http.MethodPut, "/api/menu/x"},
		{http.MethodDelete, "/api/menu/x"},
	}
	for _, rt := range routes {
		if rec := env.doJSON(rt.method, rt.path, map[string]string{}, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without session: %d, want 401", rt.method, rt.path, rec.Code)
		}
		if rec := env.doJSON(rt.method, rt.path, map[string]string{}, customer); rec.Code != http.StatusForbidden {
			t.Errorf("%s %s as customer: %d, want 403", rt.method, rt.path, rec.Code)
		}
	}

	if rec := env.doJSON(http.MethodGet, "/api/orders", nil, admin); rec.Code != http.StatusOK {
		t.Errorf("GET /api/orders as admin: %d", rec.Code)
	}
	rec := env.doJSON(http.MethodGet, "/api/orders/stats", nil, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d", rec.Code)
	}
	if st := decode[orders.Stats](t, rec); st.TotalOrders != 0 || len(st.OrdersByStatus) != 5 {
		t.Errorf("stats = %+v", st)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.doJSON(http.MethodPost, "/api/auth/register",
		map[string]string{"name": "John", "email": "John@Example.com", "password": "password123"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("password hash leaked: %s", rec.Body)
	}
	cookies := rec.Result().Cookies()

	rec = env.doJSON(http.MethodPost, "/api/auth/register",
		map[string]string{"name": "J", "email": "john@example.com", "password": "password123"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: %d, want 409", rec.Code)
	}

	rec = env.doJSON(http.MethodGet, "/api/auth/me", nil, cookies)
	if rec.Code != http.StatusOK || decode[models.User](t, rec).Email != "john@example.com" {
		t.Errorf("me: %d %s", rec.Code, rec.Body)
	}

	env.doJSON(http.MethodPost, "/api/orders", johnsOrder, nil)
	other := map[string]any{}
	for k, v := range johnsOrder {
		other[k] = v
	}
	other["customerEmail"] = "someone@example.com"
	env.doJSON(http.MethodPost, "/api/orders", other, nil)

	rec = env.doJSON(http.MethodGet, "/api/orders/mine", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("mine: %d", rec.Code)
	}
	if mine := decode[[]models.Order](t, rec); len(mine) != 1 {
		t.Errorf("mine returned %d orders, want 1", len(mine))
	}

	rec = env.doJSON(http.MethodPost, "/api/auth/login", map[string]string{"email": "john@example.com", "password": "nope"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login: %d, want 401", rec.Code)
	}

	rec = env.doJSON(http.MethodPost, "/api/auth/logout", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Errorf("logout: %d", rec.Code)
	}
	if rec = env.doJSON(http.MethodGet, "/api/auth/me", nil, rec.Result().Cookies()); rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: %d, want 401", rec.Code)
	}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	mw.Close()
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMenuCRUD(t *testing.T) {
	env := newTestEnv(t, 0)
	admin := env.login(models.RoleAdmin)

	fields := map[string]string{"name": "Burger", "description": "Beef", "price": "12.99", "category": "Main Course"}
	rec := env.do(multipartRequest(t, http.MethodPost, "/api/menu", fields, "burger.png", pngImage(t)), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	item := decode[models.MenuItem](t, rec)
	if !item.IsAvailable || !strings.HasPrefix(item.ImageURL, "http://localhost:5000/uploads/") {
		t.Errorf("created item = %+v", item)
	}

	imgPath := strings.TrimPrefix(item.ImageURL, "http://localhost:5000")
	if rec := env.do(httptest.NewRequest(http.MethodGet, imgPath, nil), nil); rec.Code != http.StatusOK {
		t.Errorf("GET %s: %d", imgPath, rec.Code)
	}

	rec = env.doJSON(http.MethodPut, "/api/menu/"+item.ID, map[string]any{"price": 0, "isAvailable": false}, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	if got := decode[models.MenuItem](t, rec); got.Price != 0 || got.IsAvailable || got.Name != "Burger" {
		t.Errorf("updated item = %+v", got)
	}

	rec = env.doJSON(http.MethodGet, "/api/menu?category=main%20course", nil, nil)
	if list := decode[[]models.MenuItem](t, rec); len(list) != 1 {
		t.Errorf("filtered menu = %d items", len(list))
	}
	rec = env.doJSON(http.MethodGet, "/api/menu/categories", nil, nil)
	if cats := decode[[]string](t, rec); len(cats) != 1 || cats[0] != "Main Course" {
		t.Errorf("categories = %v", cats)
	}

	rec = env.doJSON(http.MethodDelete, "/api/menu/"+item.ID, nil, admin)
	if rec.Code != http.StatusOK || message(t, rec) == "" {
		t.Errorf("delete: %d %s", rec.Code, rec.Body)
	}
	if rec := env.doJSON(http.MethodDelete, "/api/menu/"+item.ID, nil, admin); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: %d, want 404", rec.Code)
	}
	if rec := env.doJSON(http.MethodPut, "/api/menu/"+item.ID, map[string]any{"name": "x"}, admin); rec.Code != http.StatusNotFound {
		t.Errorf("update deleted item: %d, want 404", rec.Code)
	}
	if rec := env.do(httptest.NewRequest(http.MethodGet, imgPath, nil), nil); rec.Code != http.StatusNotFound {
		t.Errorf("image still served after delete: %d", rec.Code)
	}
}

func TestCreateMenuItemValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	admin := env.login(models.RoleAdmin)

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
	}{
		{"missing category", map[string]string{"name": "A", "description": "B", "price": "1"}, ""},
		{"empty name", map[string]string{"name": "", "description": "B", "price": "1", "category": "C"}, ""},
		{"bad price", map[string]string{"name": "A", "description": "B", "price": "cheap", "category": "C"}, ""},
		{"negative price", map[string]string{"name": "A", "description": "B", "price": "-1", "category": "C"}, ""},
		{"gif image", map[string]string{"name": "A", "description": "B", "price": "1", "category": "C"}, "a.gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(multipartRequest(t, http.MethodPost, "/api/menu", tt.fields, tt.filename, []byte("GIF89a")), admin)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", rec.Code, rec.Body)
			}
		})
	}

	big := bytes.Repeat([]byte{0}, maxImageSize+1)
	fields := map[string]string{"name": "A", "description": "B", "price": "1", "category": "C"}
	if rec := env.do(multipartRequest(t, http.MethodPost, "/api/menu", fields, "big.png", big), admin); rec.Code != http.StatusBadRequest {
		t.Errorf("oversized image: %d, want 400", rec.Code)
	}
}

func TestCreateMenuItemWithWebP(t *testing.T) {
	env := newTestEnv(t, 0)
	admin := env.login(models.RoleAdmin)

	// 1x1 lossless WebP.
	webp, err := base64.StdEncoding.DecodeString("UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==")
	if err != nil {
		t.Fatal(err)
	}
	fields := map[string]string{"name": "Salad", "description": "Greens", "price": "7.5", "category": "Starters"}
	rec := env.do(multipartRequest(t, http.MethodPost, "/api/menu", fields, "salad.webp", webp), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	if item := decode[models.MenuItem](t, rec); !strings.HasPrefix(item.ImageURL, "http://localhost:5000/uploads/") {
		t.Errorf("imageUrl = %q", item.ImageURL)
	}
}

func TestOrderKeepsLineItemSnapshot(t *testing.T) {
	env := newTestEnv(t, 0)
	admin := env.login(models.RoleAdmin)

	rec := env.doJSON(http.MethodPost, "/api/menu", map[string]any{
		"name": "Pizza", "description": "Margherita", "price": 9.5, "category": "Main Course",
	}, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: %d %s", rec.Code, rec.Body)
	}
	item := decode[models.MenuItem](t, rec)

	rec = env.doJSON(http.MethodPost, "/api/orders", map[string]any{
		"customerName":  "Jane",
		"customerEmail": "jane@example.com",
		"items":         []map[string]any{{"_id": item.ID, "name": item.Name, "price": item.Price, "quantity": 2}},
		"total":         19,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", rec.Code, rec.Body)
	}
	placed := decode[models.Order](t, rec)

	rec = env.doJSON(http.MethodPut, "/api/menu/"+item.ID, map[string]any{"name": "Pizza Deluxe", "price": 14}, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("update item: %d %s", rec.Code, rec.Body)
	}
	if rec = env.doJSON(http.MethodDelete, "/api/menu/"+item.ID, nil, admin); rec.Code != http.StatusOK {
		t.Fatalf("delete item: %d %s", rec.Code, rec.Body)
	}

	rec = env.doJSON(http.MethodGet, "/api/orders/"+placed.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order: %d %s", rec.Code, rec.Body)
	}
	got := decode[models.Order](t, rec)
	want := models.LineItem{ID: item.ID, Name: "Pizza", Price: 9.5, Quantity: 2}
	if len(got.Items) != 1 || got.Items[0] != want {
		t.Errorf("items = %+v, want [%+v]", got.Items, want)
	}
	if got.Total != 19 {
		t.Errorf("total = %v, want 19", got.Total)
	}
}

func TestQR(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/menu/qr", nil), nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("body is not a PNG")
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/menu/qr?format=dataurl", nil), nil)
	if got := decode[map[string]string](t, rec)["qrCode"]; !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("qrCode = %.40q", got)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
}

func TestOrderRateLimit(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	if rec := env.doJSON(http.MethodPost, "/api/orders", johnsOrder, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first order: %d", rec.Code)
	}
	rec := env.doJSON(http.MethodPost, "/api/orders", johnsOrder, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second order: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}
