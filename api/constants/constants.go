package constants

// Request errors
const (
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrInvalidRequestBody = "Invalid request body"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrParseMultipart     = "Failed to parse multipart form"
	ErrOpenUpload         = "Failed to open uploaded file: "
	ErrNoFileUploaded     = "No file uploaded"
	ErrUnknownView        = "Unknown view: "
	ErrUnknownFormat      = "Unsupported response format: "
)

// Pipeline errors
const (
	ErrUnknownScreen    = "Unknown screen: "
	ErrUnknownLog       = "Unknown library log: "
	ErrMissingInput     = "A required upload is missing: "
	ErrBadUpload        = "The uploaded data could not be processed: "
	ErrScreenFailed     = "Screen run failed"
	ErrLibraryOffline   = "Document library is not configured"
	ErrLibraryFailed    = "Library operation failed"
	ErrDocumentNotFound = "No document found for category: "
	ErrExportFailed     = "Failed to build download"
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	HeaderCT        = "Content-Type"
	HeaderCD        = "Content-Disposition"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
)

// Upload limits
const MaxUploadBytes = 32 << 20
