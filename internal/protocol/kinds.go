package protocol

// Kind is the value of a frame's "type" field.
type Kind string

// Outbound command kinds.
const (
	KindExecute         Kind = "execute"
	KindSaveNotebook    Kind = "save_notebook"
	KindLoadNotebook    Kind = "load_notebook"
	KindRestart         Kind = "restart"
	KindDeployLambda    Kind = "deploy_lambda"
	KindPostHogSetup    Kind = "posthog_setup" // also the kind of its reply event
	KindCreateConnector Kind = "create_connector"
)

// Inbound event kinds.
const (
	KindInit             Kind = "init"
	KindOutput           Kind = "output"
	KindNotebookLoaded   Kind = "notebook_loaded"
	KindNotebookSaved    Kind = "notebook_saved"
	KindLambdaGenerated  Kind = "lambda_generated"
	KindConnectorStatus  Kind = "connector_status"
	KindConnectorCreated Kind = "connector_created"
	KindError            Kind = "error"
)

// CommandKinds lists every outbound kind.
var CommandKinds = []Kind{
	KindExecute,
	KindSaveNotebook,
	KindLoadNotebook,
	KindRestart,
	KindDeployLambda,
	KindPostHogSetup,
	KindCreateConnector,
}

// EventKinds lists every inbound kind DecodeEvent accepts.
var EventKinds = []Kind{
	KindInit,
	KindOutput,
	KindNotebookLoaded,
	KindNotebookSaved,
	KindLambdaGenerated,
	KindPostHogSetup,
	KindConnectorStatus,
	KindConnectorCreated,
	KindError,
}
