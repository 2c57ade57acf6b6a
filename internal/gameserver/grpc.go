package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/character"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/combat"
	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/game/world"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dndai.v1.ActionService"

// ActionServiceServer is the transport contract. Messages are JSON-shaped
// structpb.Struct values mirroring the Go request and response types.
type ActionServiceServer interface {
	SubmitAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCombat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCombats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateCampaign(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ActionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ActionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ActionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes ActionServiceServer to grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ActionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitAction", Handler: unaryHandler("SubmitAction", ActionServiceServer.SubmitAction)},
		{MethodName: "GetCombat", Handler: unaryHandler("GetCombat", ActionServiceServer.GetCombat)},
		{MethodName: "ListCombats", Handler: unaryHandler("ListCombats", ActionServiceServer.ListCombats)},
		{MethodName: "CreateCampaign", Handler: unaryHandler("CreateCampaign", ActionServiceServer.CreateCampaign)},
		{MethodName: "CreateCharacter", Handler: unaryHandler("CreateCharacter", ActionServiceServer.CreateCharacter)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dndai/v1/action.proto",
}

// RegisterActionServiceServer registers srv with s.
func RegisterActionServiceServer(s grpc.ServiceRegistrar, srv ActionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCServer adapts ActionService to ActionServiceServer.
type GRPCServer struct {
	svc    *ActionService
	logger *zap.Logger
}

// NewGRPCServer wraps svc.
//
// Precondition: svc and logger must be non-nil.
func NewGRPCServer(svc *ActionService, logger *zap.Logger) *GRPCServer {
	return &GRPCServer{svc: svc, logger: logger}
}

// CombatQuery names one character's combat history.
type CombatQuery struct {
	CampaignID  string `json:"campaign_id"`
	CharacterID string `json:"character_id"`
}

// CombatReply carries the active session, nil when there is none.
type CombatReply struct {
	Combat *combat.Session `json:"combat"`
}

// CombatListReply carries every session of a character.
type CombatListReply struct {
	Combats []*combat.Session `json:"combats"`
}

// SubmitAction implements ActionServiceServer.
func (g *GRPCServer) SubmitAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ActionRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	resp, err := g.svc.SubmitAction(ctx, req)
	if err != nil {
		return nil, g.statusOf(err)
	}
	return toStruct(resp)
}

// GetCombat implements ActionServiceServer.
func (g *GRPCServer) GetCombat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q CombatQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, toStatus(err)
	}
	sess, err := g.svc.GetCombat(ctx, q.CampaignID, q.CharacterID)
	if err != nil {
		return nil, g.statusOf(err)
	}
	return toStruct(CombatReply{Combat: sess})
}

// ListCombats implements ActionServiceServer.
func (g *GRPCServer) ListCombats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q CombatQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, toStatus(err)
	}
	list, err := g.svc.ListCombats(ctx, q.CampaignID, q.CharacterID)
	if err != nil {
		return nil, g.statusOf(err)
	}
	return toStruct(CombatListReply{Combats: list})
}

// CreateCampaign implements ActionServiceServer.
func (g *GRPCServer) CreateCampaign(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CreateCampaignRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	c, err := g.svc.CreateCampaign(ctx, req)
	if err != nil {
		return nil, g.statusOf(err)
	}
	return toStruct(c)
}

// CreateCharacter implements ActionServiceServer.
func (g *GRPCServer) CreateCharacter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CreateCharacterRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	c, err := g.svc.CreateCharacter(ctx, req)
	if err != nil {
		return nil, g.statusOf(err)
	}
	return toStruct(c)
}

// statusOf maps err to a status, logging failures the caller cannot fix.
func (g *GRPCServer) statusOf(err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		g.logger.Error("action service failure", zap.Error(err))
	}
	return st
}

// LoggingInterceptor logs every unary call with its status code and duration.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc served", fields...)
		}
		return resp, err
	}
}

// toStruct encodes v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encoding reply: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, toStatus(fmt.Errorf("encoding reply: %w", err))
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encoding reply: %w", err))
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return invalid("decoding message: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return invalid("decoding message: %v", err)
	}
	return nil
}

// Client calls a remote ActionService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, reply); err != nil {
		return err
	}
	return fromStruct(reply, out)
}

// SubmitAction submits one player action.
func (c *Client) SubmitAction(ctx context.Context, req ActionRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.invoke(ctx, "SubmitAction", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCombat returns the active session, or nil.
func (c *Client) GetCombat(ctx context.Context, campaignID, characterID string) (*combat.Session, error) {
	var reply CombatReply
	if err := c.invoke(ctx, "GetCombat", CombatQuery{CampaignID: campaignID, CharacterID: characterID}, &reply); err != nil {
		return nil, err
	}
	return reply.Combat, nil
}

// ListCombats returns every session of the character.
func (c *Client) ListCombats(ctx context.Context, campaignID, characterID string) ([]*combat.Session, error) {
	var reply CombatListReply
	if err := c.invoke(ctx, "ListCombats", CombatQuery{CampaignID: campaignID, CharacterID: characterID}, &reply); err != nil {
		return nil, err
	}
	return reply.Combats, nil
}

// CreateCampaign creates a campaign.
func (c *Client) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (world.Campaign, error) {
	var out world.Campaign
	err := c.invoke(ctx, "CreateCampaign", req, &out)
	return out, err
}

// CreateCharacter creates a character.
func (c *Client) CreateCharacter(ctx context.Context, req CreateCharacterRequest) (character.State, error) {
	var out character.State
	err := c.invoke(ctx, "CreateCharacter", req, &out)
	return out, err
}
