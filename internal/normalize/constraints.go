package normalize

import (
	"errors"
	"net/url"
	"time"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/failure"
	"github.com/rohmanhakim/scoutly/pkg/urlutil"
)

/*
Responsibilities

- Resolve a raw href/src attribute value against the page it was found on
- Reject non-http(s) schemes and malformed references with a
  NormalizationError; the HTML Analyzer records the former as Skipped
  references and drops the latter
- Apply the crawl's fragment-retention setting uniformly

The HTML Analyzer calls Constraint.Normalize once per discovered reference;
the Crawl Engine never resolves a reference itself.
*/

type Constraint interface {
	Normalize(refValue string, param ReferenceParam) (NormalizedReference, failure.ClassifiedError)
}

// ReferenceConstraint wraps pkg/urlutil.Resolve, reporting rejections
// through a MetadataSink without ever treating them as fatal to the crawl.
type ReferenceConstraint struct {
	metadataSink metadata.MetadataSink
}

func NewReferenceConstraint(metadataSink metadata.MetadataSink) ReferenceConstraint {
	return ReferenceConstraint{metadataSink: metadataSink}
}

func (c *ReferenceConstraint) Normalize(
	refValue string,
	param ReferenceParam,
) (NormalizedReference, failure.ClassifiedError) {
	resolved, err := urlutil.Resolve(refValue, param.pageURL, param.keepFragments)
	if err != nil {
		normErr := classifyResolveError(err, refValue, resolved)

		c.metadataSink.RecordError(
			time.Now(),
			"normalize",
			"ReferenceConstraint.Normalize",
			mapNormalizationErrorToMetadataCause(normErr.Cause),
			normErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, param.pageURL.String()),
				metadata.NewAttr(metadata.AttrKind, string(param.kind)),
			},
		)
		return NormalizedReference{}, normErr
	}

	return NewNormalizedReference(resolved), nil
}

func classifyResolveError(err error, refValue string, resolved url.URL) *NormalizationError {
	if errors.Is(err, urlutil.ErrUnsupportedScheme) {
		return &NormalizationError{
			Message:     refValue,
			Cause:       ErrCauseUnsupportedScheme,
			RejectedURL: resolved,
		}
	}
	return &NormalizationError{
		Message: err.Error(),
		Cause:   ErrCauseMalformedRef,
	}
}
