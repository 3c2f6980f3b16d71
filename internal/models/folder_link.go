package models

// Sheet headers of the shared folder index.
const (
	ColFolderCode    = "Codificación"
	ColFolderProgram = "Programa"
	ColFolderID      = "CarpetaID"
)

// FolderLink associates a course of a program with its document folder.
type FolderLink struct {
	Code     string  `json:"code"`
	Program  Program `json:"program"`
	FolderID string  `json:"folder_id"`
}

// FolderLinkStatus tells whether a course folder was found.
type FolderLinkStatus string

const (
	FolderLinkFound    FolderLinkStatus = "found"
	FolderLinkNotFound FolderLinkStatus = "not_found"
)

// FolderLinkResult is the resolved folder of a course. RootURL and Hint point
// users at the program folder when no course folder is indexed.
type FolderLinkResult struct {
	Status  FolderLinkStatus `json:"status"`
	URL     string           `json:"url,omitempty"`
	RootURL string           `json:"root_url,omitempty"`
	Hint    string           `json:"hint,omitempty"`
}

func (r FolderLinkResult) Found() bool { return r.Status == FolderLinkFound }
