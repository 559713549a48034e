// Package preprocess implements the SDSL preprocessor.
//
// Preprocessing is a chain of phases. Each phase reads one immutable code
// frame and produces a new one; frames live in an Arena and refer to the
// frame they were derived from by index. Every frame records which range of
// its parent each piece of its text came from, so an offset in the final
// text can be translated back to the original source through every phase.
//
// The default phases are:
//
//	StripComments  - replaces // and /* */ comments with a single space
//	Directives     - #if/#ifdef/#ifndef/#elif/#else/#endif, #define, #undef, #error
//	ExpandMacros   - substitutes object-like and function-like macros
package preprocess
