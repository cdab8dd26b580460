package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a LedgerService.
type Client struct {
	signUp          *connect.Client[SignUpRequest, AuthResponse]
	signIn          *connect.Client[SignInRequest, AuthResponse]
	signOut         *connect.Client[SignOutRequest, SignOutResponse]
	createHousehold *connect.Client[CreateHouseholdRequest, SnapshotResponse]
	joinHousehold   *connect.Client[JoinHouseholdRequest, SnapshotResponse]
	addExpense      *connect.Client[AddExpenseRequest, SnapshotResponse]
	addPayment      *connect.Client[AddPaymentRequest, SnapshotResponse]
	getSnapshot     *connect.Client[GetSnapshotRequest, SnapshotResponse]
	refresh         *connect.Client[RefreshRequest, SnapshotResponse]
	subscribe       *connect.Client[SubscribeRequest, SnapshotResponse]
}

// NewClient constructs a client for the LedgerService at baseURL, for
// example http://localhost:8080.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &Client{
		signUp:          connect.NewClient[SignUpRequest, AuthResponse](httpClient, baseURL+SignUpProcedure, opts...),
		signIn:          connect.NewClient[SignInRequest, AuthResponse](httpClient, baseURL+SignInProcedure, opts...),
		signOut:         connect.NewClient[SignOutRequest, SignOutResponse](httpClient, baseURL+SignOutProcedure, opts...),
		createHousehold: connect.NewClient[CreateHouseholdRequest, SnapshotResponse](httpClient, baseURL+CreateHouseholdProcedure, opts...),
		joinHousehold:   connect.NewClient[JoinHouseholdRequest, SnapshotResponse](httpClient, baseURL+JoinHouseholdProcedure, opts...),
		addExpense:      connect.NewClient[AddExpenseRequest, SnapshotResponse](httpClient, baseURL+AddExpenseProcedure, opts...),
		addPayment:      connect.NewClient[AddPaymentRequest, SnapshotResponse](httpClient, baseURL+AddPaymentProcedure, opts...),
		getSnapshot:     connect.NewClient[GetSnapshotRequest, SnapshotResponse](httpClient, baseURL+GetSnapshotProcedure, opts...),
		refresh:         connect.NewClient[RefreshRequest, SnapshotResponse](httpClient, baseURL+RefreshProcedure, opts...),
		subscribe:       connect.NewClient[SubscribeRequest, SnapshotResponse](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

// Authorize sets the bearer token on a request.
func Authorize[T any](req *connect.Request[T], token string) *connect.Request[T] {
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func (c *Client) SignUp(ctx context.Context, req *connect.Request[SignUpRequest]) (*connect.Response[AuthResponse], error) {
	return c.signUp.CallUnary(ctx, req)
}

func (c *Client) SignIn(ctx context.Context, req *connect.Request[SignInRequest]) (*connect.Response[AuthResponse], error) {
	return c.signIn.CallUnary(ctx, req)
}

func (c *Client) SignOut(ctx context.Context, req *connect.Request[SignOutRequest]) (*connect.Response[SignOutResponse], error) {
	return c.signOut.CallUnary(ctx, req)
}

func (c *Client) CreateHousehold(ctx context.Context, req *connect.Request[CreateHouseholdRequest]) (*connect.Response[SnapshotResponse], error) {
	return c.createHousehold.CallUnary(ctx, req)
}

func (c *Client) JoinHousehold(ctx context.Context, req *connect.Request[JoinHouseholdRequest]) (*connect.Response[SnapshotResponse], error) {
	return c.joinHousehold.CallUnary(ctx, req)
}

func (c *Client) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[SnapshotResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *Client) AddPayment(ctx context.Context, req *connect.Request[AddPaymentRequest]) (*connect.Response[SnapshotResponse], error) {
	return c.addPayment.CallUnary(ctx, req)
}

func (c *Client) GetSnapshot(ctx context.Context, req *connect.Request[GetSnapshotRequest]) (*connect.Response[SnapshotResponse], error) {
	return c.getSnapshot.CallUnary(ctx, req)
}

func (c *Client) Refresh(ctx context.Context, req *connect.Request[RefreshRequest]) (*connect.Response[SnapshotResponse], error) {
	return c.refresh.CallUnary(ctx, req)
}

func (c *Client) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest]) (*connect.ServerStreamForClient[SnapshotResponse], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
