package grpc

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	searchServiceName = "visualsearch.v1.SearchService"
	maxImageSize      = 15 << 20
)

// SearchServiceServer — gRPC-вариант поиска. Сообщения передаются как google.protobuf.Struct,
// изображение приходит в поле image строкой base64.
type SearchServiceServer interface {
	Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Health(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type SearchService struct {
	searchUC usecase.SearchUC
	cfg      *cfg.SearchCfg
	logger   logger.Logger
}

func NewSearchService(searchUC usecase.SearchUC, cfg *cfg.SearchCfg, logger logger.Logger) *SearchService {
	return &SearchService{searchUC: searchUC, cfg: cfg, logger: logger}
}

func (g *SearchService) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Search"

	searchReq, err := g.toSearchReq(req)
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := g.searchUC.Search(ctx, searchReq)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := structpb.NewStruct(toGRPCSearchRes(res))
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return out, nil
}

func (g *SearchService) Health(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	h := g.searchUC.Health()

	return structpb.NewStruct(map[string]any{
		"index_loaded":  h.IndexLoaded,
		"index_size":    h.IndexSize,
		"index_version": h.IndexVersion,
		"index_kind":    h.IndexKind,
		"model_version": h.ModelVersion,
		"detector_mode": h.DetectorMode,
	})
}

func (g *SearchService) toSearchReq(req *structpb.Struct) (*usecase.SearchReq, error) {
	fields := req.GetFields()

	raw := fields["image"].GetStringValue()
	if raw == "" {
		return nil, e.ErrNoImage
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > maxImageSize {
		return nil, e.ErrFileTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, e.Wrap("image is not base64", e.ErrInvalidArgument)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	if _, err := infrastructure.GetExtensionFromMIME(mimeType); err != nil {
		return nil, e.Wrap(mimeType, err)
	}

	k, err := intField(fields, "k", g.cfg.DefaultTopK)
	if err != nil {
		return nil, err
	}
	maxRegions, err := intField(fields, "max_regions", g.cfg.MaxRegions)
	if err != nil {
		return nil, err
	}

	return &usecase.SearchReq{
		Image:       data,
		ContentType: mimeType,
		K:           k,
		MaxRegions:  maxRegions,
	}, nil
}

func intField(fields map[string]*structpb.Value, name string, def int) (int, error) {
	v, ok := fields[name]
	if !ok {
		return def, nil
	}

	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != float64(int(n.NumberValue)) {
		return 0, e.Wrapf(e.ErrInvalidArgument, "%s must be an integer", name)
	}

	return int(n.NumberValue), nil
}

func toGRPCSearchRes(res *usecase.SearchRes) map[string]any {
	results := make([]any, 0, len(res.Hits))
	for _, hit := range res.Hits {
		item := map[string]any{
			"product_id": hit.ProductID,
			"score":      float64(hit.Score),
			"image_url":  hit.ImageURL,
		}
		if p := hit.Product; p != nil {
			item["title"] = p.Title
			item["category"] = p.Category
			item["currency"] = p.Currency
			if !p.SalePrice.IsZero() {
				item["price"] = p.SalePrice.StringFixed(2)
			}
		}
		results = append(results, item)
	}

	return map[string]any{
		"results":          results,
		"regions_detected": res.RegionsDetected,
		"regions_failed":   res.RegionsFailed,
		"index_version":    res.IndexVersion,
		"cached":           res.Cached,
	}
}

var searchServiceDesc = grpc.ServiceDesc{
	ServiceName: searchServiceName,
	HandlerType: (*SearchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: unaryHandler("Search", SearchServiceServer.Search)},
		{MethodName: "Health", Handler: unaryHandler("Health", SearchServiceServer.Health)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "visualsearch/v1/search.proto",
}

type structMethod func(SearchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(SearchServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + searchServiceName + "/" + name}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(SearchServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
