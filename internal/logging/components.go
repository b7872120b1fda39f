package logging

// Component names attached to log records as the "component" attribute.
const (
	ComponentStartup      = "startup"
	ComponentConfig       = "config"
	ComponentRenderer     = "renderer"
	ComponentCapture      = "capture"
	ComponentSequence     = "sequence-capture"
	ComponentEncoder      = "encoder"
	ComponentOrchestrator = "orchestrator"
	ComponentDelivery     = "delivery"
	ComponentClipboard    = "clipboard"
	ComponentPrint        = "print-surface"
	ComponentAPI          = "api"
	ComponentSSE          = "sse"
	ComponentCLI          = "cli"
	ComponentPoller       = "poller"
)
