package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/httpserver/handlers"
	"buildtrack/internal/rbac"
	"buildtrack/internal/service"
	"buildtrack/internal/storage"
)

// NewRouter wires every route. Auth endpoints and the health check are
// public; everything else requires a valid session token, with mutating
// catalog routes additionally gated to admin/manager.
func NewRouter(db *gorm.DB, store *storage.Store, lg *zap.SugaredLogger) http.Handler {
	defects := service.NewDefects(db)
	comments := service.NewComments(db)
	files := service.NewFiles(db, store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/api/auth/signup", handlers.Signup(db, lg))
	r.Post("/api/auth/signin", handlers.Signin(db, lg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.SessionAuth)
		protected.Post("/api/auth/logout", handlers.Logout())
		protected.Get("/api/auth/me", handlers.Me())

		protected.Get("/api/users", handlers.ListUsers(db, lg))
		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(rbac.RoleAdmin))
			admin.Post("/api/admin/users", handlers.AdminCreateUser(db, lg))
			admin.Patch("/api/admin/users/{id}", handlers.AdminUpdateUser(db, lg))
		})

		protected.Get("/api/projects", handlers.ListProjects(db, lg))
		protected.Get("/api/projects/{id}", handlers.GetProject(db, lg))
		protected.Get("/api/objects", handlers.ListObjects(db, lg))
		protected.Get("/api/objects/{id}", handlers.GetObject(db, lg))
		protected.Get("/api/stages", handlers.ListStages(db, lg))
		protected.Get("/api/stages/{id}", handlers.GetStage(db, lg))
		protected.Group(func(catalog chi.Router) {
			catalog.Use(auth.RequireRole(rbac.RoleAdmin, rbac.RoleManager))
			catalog.Post("/api/projects", handlers.CreateProject(db, lg))
			catalog.Patch("/api/projects/{id}", handlers.UpdateProject(db, lg))
			catalog.Delete("/api/projects/{id}", handlers.DeleteProject(db, lg))
			catalog.Post("/api/objects", handlers.CreateObject(db, lg))
			catalog.Patch("/api/objects/{id}", handlers.UpdateObject(db, lg))
			catalog.Delete("/api/objects/{id}", handlers.DeleteObject(db, lg))
			catalog.Post("/api/stages", handlers.CreateStage(db, lg))
			catalog.Patch("/api/stages/{id}", handlers.UpdateStage(db, lg))
			catalog.Delete("/api/stages/{id}", handlers.DeleteStage(db, lg))
		})

		protected.Get("/api/defects", handlers.ListDefects(defects, lg))
		protected.Post("/api/defects", handlers.CreateDefect(defects, lg))
		protected.Get("/api/defects/{id}", handlers.GetDefect(defects, lg))
		protected.Patch("/api/defects/{id}", handlers.UpdateDefect(defects, lg))
		protected.Delete("/api/defects/{id}", handlers.DeleteDefect(defects, lg))
		protected.Get("/api/defects/{id}/history", handlers.DefectHistory(defects, lg))

		protected.Get("/api/defects/{id}/comments", handlers.ListComments(comments, lg))
		protected.Post("/api/defects/{id}/comments", handlers.CreateComment(comments, lg))
		protected.Get("/api/comments/{id}", handlers.GetComment(comments, lg))
		protected.Patch("/api/comments/{id}", handlers.UpdateComment(comments, lg))
		protected.Delete("/api/comments/{id}", handlers.DeleteComment(comments, lg))

		protected.Get("/api/defects/{id}/files", handlers.ListFiles(files, lg))
		protected.Post("/api/defects/{id}/files", handlers.UploadFile(files, lg))
		protected.Get("/api/files/{id}", handlers.GetFile(files, lg))
		protected.Delete("/api/files/{id}", handlers.DeleteFile(files, lg))
		protected.Get("/api/files/{id}/download", handlers.DownloadFile(files, lg))

		protected.Group(func(reports chi.Router) {
			reports.Use(auth.RequireRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleObserver))
			reports.Get("/api/reports/stats", handlers.Stats(defects, lg))
			reports.Get("/api/reports/defects/export", handlers.ExportDefects(defects, lg))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
