package web

import (
	"log"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mogaika/dark_db_browser/engine"
	"github.com/mogaika/dark_db_browser/status"
)

var (
	ServerEngine *engine.Engine
	// services are single threaded, every request touching them holds it
	engineLock sync.Mutex
)

func locked(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engineLock.Lock()
		defer engineLock.Unlock()
		h(w, r)
	}
}

func NewRouter(e *engine.Engine, webPath string) *mux.Router {
	ServerEngine = e

	r := mux.NewRouter()
	r.HandleFunc("/json/db", locked(HandlerAjaxDatabase))
	r.HandleFunc("/json/chunks", locked(HandlerAjaxChunks))
	r.HandleFunc("/json/objects", locked(HandlerAjaxObjects))
	r.HandleFunc("/json/inherit/{object}", locked(HandlerAjaxInherit))
	r.HandleFunc("/json/property", locked(HandlerAjaxProperties))
	r.HandleFunc("/json/property/{name}/{object}", locked(HandlerAjaxPropertyObject))
	r.HandleFunc("/action/load/{file}", locked(HandlerActionLoad))
	r.HandleFunc("/action/loadgamesys/{file}", locked(HandlerActionLoadGameSys))
	r.HandleFunc("/action/unload", locked(HandlerActionUnload))
	r.HandleFunc("/action/save/{file}", locked(HandlerActionSave))
	r.HandleFunc("/dump/chunk/{name}", locked(HandlerDumpChunk))
	r.HandleFunc("/debug/property/{name}", locked(HandlerDebugProperty))
	r.HandleFunc("/ws/status", status.ServeWs)

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))
	return r
}

func StartServer(addr string, e *engine.Engine, webPath string) error {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(NewRouter(e, webPath))
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
