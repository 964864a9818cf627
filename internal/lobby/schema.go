package lobby

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"majdl/internal/lqproto"
	"majdl/internal/services"
)

// Schema is the client's protobuf schema for one client version.
type Schema struct {
	Version string
	URL     string
	Data    []byte
	Catalog *lqproto.Catalog
}

// FetchSchema downloads the liqi.json schema of the current client version.
// The resource version document maps each client resource to a path prefix,
// and the schema lives at <resource base>/<prefix>/res/proto/liqi.json. The
// document is compiled before it is returned, so a schema that could not be
// loaded later is never handed back.
func (d *Discoverer) FetchSchema(ctx context.Context) (Schema, error) {
	version, err := d.Version(ctx)
	if err != nil {
		return Schema{}, err
	}

	resourceURL := strings.ReplaceAll(d.resourceURL, "{version}", version)
	resourceDoc, err := d.getJSON(ctx, resourceURL)
	if err != nil {
		return Schema{}, err
	}
	key := strings.ReplaceAll(lqproto.SchemaFileName, ".", `\.`)
	prefix := gjson.GetBytes(resourceDoc, "res."+key+".prefix").String()
	if prefix == "" {
		return Schema{}, services.Wrap(services.ErrTransport, discoveryStage, "resources",
			fmt.Sprintf("resource document has no %s entry", lqproto.SchemaFileName), nil)
	}

	base := resourceURL[:strings.LastIndex(resourceURL, "/")+1]
	schemaURL := base + strings.Trim(prefix, "/") + "/" + lqproto.SchemaFileName
	data, err := d.getJSON(ctx, schemaURL)
	if err != nil {
		return Schema{}, err
	}
	catalog, err := lqproto.FromSchemaJSON(data)
	if err != nil {
		return Schema{}, services.Wrap(services.ErrValidation, discoveryStage, "schema", schemaURL, err)
	}
	return Schema{Version: version, URL: schemaURL, Data: data, Catalog: catalog}, nil
}
