package web

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/status"
	"github.com/mogaika/dark_db_browser/utils"
	"github.com/mogaika/dark_db_browser/webutils"
)

var errNoDatabase = errors.New("No database loaded")

func parseObject(r *http.Request) (object.ID, error) {
	s := mux.Vars(r)["object"]
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return object.None, errors.Errorf("Object param %q is not integer", s)
	}
	return object.ID(id), nil
}

func HandlerAjaxDatabase(w http.ResponseWriter, r *http.Request) {
	e := ServerEngine
	current := ""
	if db := e.Database.Current(); db != nil {
		current = db.Name()
	}
	webutils.WriteJson(w, &struct {
		Current  string
		Chain    []string
		Progress database.Progress
		Files    []string
	}{
		Current:  current,
		Chain:    e.Database.Chain(),
		Progress: e.Database.Progress(),
		Files:    e.Locator.List(),
	})
}

type chunkInfo struct {
	Name         string
	VersionMajor uint32
	VersionMinor uint32
	Size         int64
}

func HandlerAjaxChunks(w http.ResponseWriter, r *http.Request) {
	db := ServerEngine.Database.Current()
	if db == nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, errNoDatabase)
		return
	}

	names := db.List()
	result := make([]chunkInfo, 0, len(names))
	for _, name := range names {
		h, err := db.Header(name)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		f, err := db.GetFile(name)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		result = append(result, chunkInfo{
			Name:         h.Name,
			VersionMajor: h.VersionMajor,
			VersionMinor: h.VersionMinor,
			Size:         f.Size(),
		})
	}
	webutils.WriteJson(w, result)
}

type objectEntry struct {
	ID        object.ID
	Name      string `json:",omitempty"`
	Archetype object.ID
}

func HandlerAjaxObjects(w http.ResponseWriter, r *http.Request) {
	e := ServerEngine
	objs := e.Objects.Objects()
	result := make([]objectEntry, len(objs))
	for i, id := range objs {
		result[i] = objectEntry{ID: id, Name: e.Name(id), Archetype: e.Inherit.GetArchetype(id)}
	}
	webutils.WriteJson(w, result)
}

func HandlerAjaxInherit(w http.ResponseWriter, r *http.Request) {
	id, err := parseObject(r)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	info, err := ServerEngine.Describe(id)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, err)
		return
	}
	webutils.WriteJson(w, info)
}

type propertyEntry struct {
	Name    string
	Chunk   string
	Policy  string
	Version string
	Fields  []string
	Owners  int
	Values  int
}

func HandlerAjaxProperties(w http.ResponseWriter, r *http.Request) {
	props := ServerEngine.Properties.Properties()
	result := make([]propertyEntry, len(props))
	for i, p := range props {
		fields := make([]string, len(p.Schema().Fields))
		for j, f := range p.Schema().Fields {
			fields[j] = fmt.Sprintf("%s:%v@%d", f.Name, f.Kind, f.Offset)
		}
		v := p.Version()
		result[i] = propertyEntry{
			Name:    p.Name(),
			Chunk:   p.ChunkName(),
			Policy:  p.Inheritor().Policy().String(),
			Version: fmt.Sprintf("%d.%d", v.Major, v.Minor),
			Fields:  fields,
			Owners:  len(p.Objects()),
			Values:  len(p.Inheritor().Effective()),
		}
	}
	webutils.WriteJson(w, result)
}

func HandlerAjaxPropertyObject(w http.ResponseWriter, r *http.Request) {
	p, err := ServerEngine.Properties.GetProperty(mux.Vars(r)["name"])
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, err)
		return
	}
	id, err := parseObject(r)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	fields, err := p.Fields(id)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, err)
		return
	}
	webutils.WriteJson(w, &struct {
		Object object.ID
		Source object.ID
		Owned  bool
		Fields interface{}
	}{id, p.Source(id), p.Owns(id), fields})
}

func actionResult(w http.ResponseWriter, action string, err error) {
	if err != nil {
		status.Error("%s failed: %v", action, err)
		webutils.WriteError(w, err)
		return
	}
	status.Info("%s done", action)
	HandlerAjaxDatabase(w, nil)
}

func HandlerActionLoad(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	actionResult(w, "Load of "+file, ServerEngine.Database.Load(file))
}

func HandlerActionLoadGameSys(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	actionResult(w, "Gamesys load of "+file, ServerEngine.Database.LoadGameSys(file))
}

func HandlerActionUnload(w http.ResponseWriter, r *http.Request) {
	actionResult(w, "Unload", ServerEngine.Database.Unload())
}

// saveMask picks the file type from the extension, ?mask=0x... overrides it
func saveMask(r *http.Request, file string) (database.Mask, error) {
	if s := r.URL.Query().Get("mask"); s != "" {
		m, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "Invalid mask %q", s)
		}
		return database.Mask(m), nil
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".gam":
		return database.FileTypeGam, nil
	case ".mis":
		return database.FileTypeMis, nil
	case ".sav":
		return database.FileTypeSav, nil
	case ".vbr":
		return database.FileTypeVbr, nil
	case ".cow":
		return database.FileTypeCow, nil
	}
	return 0, errors.Errorf("Cannot guess database type of %q, use ?mask=", file)
}

func HandlerActionSave(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	mask, err := saveMask(r, file)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	actionResult(w, "Save of "+file, ServerEngine.Database.Save(file, mask))
}

func HandlerDumpChunk(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	db := ServerEngine.Database.Current()
	if db == nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, errNoDatabase)
		return
	}
	f, err := db.GetFile(name)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, err)
		return
	}
	webutils.WriteFile(w, f, name)
}

func HandlerDebugProperty(w http.ResponseWriter, r *http.Request) {
	p, err := ServerEngine.Properties.GetProperty(mux.Vars(r)["name"])
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, err)
		return
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "%s (%s, %v)\n", p.Name(), p.ChunkName(), p.Inheritor().Policy())
	out.WriteString(utils.SDump(p.Schema()))
	for _, id := range p.Inheritor().Effective() {
		data, _ := p.Get(id)
		fmt.Fprintf(&out, "%v <- %v: %s\n", id, p.Source(id), utils.DumpToOneLineString(data))
	}
	webutils.WriteText(w, out.String())
}
