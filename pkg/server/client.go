package server

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the Guard service using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (*ScanResponse, error) {
	return invoke[ScanResponse](ctx, c, "Scan", in, opts)
}

func (c *Client) Scrub(ctx context.Context, in *ScrubRequest, opts ...grpc.CallOption) (*ScrubResponse, error) {
	return invoke[ScrubResponse](ctx, c, "Scrub", in, opts)
}

func (c *Client) Mask(ctx context.Context, in *MaskRequest, opts ...grpc.CallOption) (*MaskResponse, error) {
	return invoke[MaskResponse](ctx, c, "Mask", in, opts)
}

func (c *Client) Summarize(ctx context.Context, in *SummarizeRequest, opts ...grpc.CallOption) (*SummarizeResponse, error) {
	return invoke[SummarizeResponse](ctx, c, "Summarize", in, opts)
}

func (c *Client) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	return invoke[ResolveResponse](ctx, c, "Resolve", in, opts)
}

func (c *Client) Recent(ctx context.Context, in *RecentRequest, opts ...grpc.CallOption) (*RecentResponse, error) {
	return invoke[RecentResponse](ctx, c, "Recent", in, opts)
}
