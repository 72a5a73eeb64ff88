// Package rpc carries domain.Gateway calls over HTTP.
//
// Every call is POST /rpc/{method} with a JSON argument object. Replies are
// {"result": ...} on success and {"error": {"kind", "message"}} otherwise.
// Push events stream as newline-delimited JSON from GET /events?topic=...
package rpc

import "encoding/json"

// Method names on the wire
const (
	methodListAccounts       = "list_accounts"
	methodGetCurrentAccount  = "get_current_account"
	methodAddAccount         = "add_account"
	methodDeleteAccount      = "delete_account"
	methodDeleteAccounts     = "delete_accounts"
	methodSwitchAccount      = "switch_account"
	methodFetchAccountQuota  = "fetch_account_quota"
	methodRefreshAllQuotas   = "refresh_all_quotas"
	methodStartOAuthLogin    = "start_oauth_login"
	methodCancelOAuthLogin   = "cancel_oauth_login"
	methodCompleteOAuthLogin = "complete_oauth_login"
	methodImportV1Accounts   = "import_v1_accounts"
	methodImportFromDB       = "import_from_db"
	methodImportFromCustomDB = "import_custom_db"
	methodSyncAccountFromDB  = "sync_account_from_db"
	methodToggleProxyStatus  = "toggle_proxy_status"
)

const (
	headerRequestID = "X-Request-ID"
	eventsPath      = "/events"
	rpcPrefix       = "/rpc/"
)

// envelope is the reply body for every RPC call
type envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type accountIDArgs struct {
	AccountID string `json:"account_id"`
}

type accountIDsArgs struct {
	AccountIDs []string `json:"account_ids"`
}

type addAccountArgs struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

type customDBArgs struct {
	Path string `json:"path"`
}

type toggleProxyArgs struct {
	AccountID string `json:"account_id"`
	Enable    bool   `json:"enable"`
	Reason    string `json:"reason,omitempty"`
}

// event is one line of the /events stream
type event struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}
