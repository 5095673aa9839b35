package driven

import (
	"context"
	"net/url"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

// TokenFetcher defines the driven port for the platform's credential endpoints.
// Failures are returned as *model.CredentialFetchError.
type TokenFetcher interface {
	// FetchAccessToken exchanges a corp id and scope secret for an access token.
	FetchAccessToken(ctx context.Context, corpID, secret string) (model.FetchResult, error)
	// FetchAgentTicket returns the application-level JS-SDK ticket.
	FetchAgentTicket(ctx context.Context, accessToken string) (model.FetchResult, error)
	// FetchCorpTicket returns the corp-level JS-SDK ticket.
	FetchCorpTicket(ctx context.Context, accessToken string) (model.FetchResult, error)
}

// APIClient defines the driven port for authorized platform API calls.
type APIClient interface {
	// Do sends an authorized request to path and decodes the JSON response
	// into out. body is marshaled as JSON when non-nil. A non-zero errcode in
	// the response is returned as *model.APIError.
	Do(ctx context.Context, method, path, accessToken string, query url.Values, body, out any) error
}
