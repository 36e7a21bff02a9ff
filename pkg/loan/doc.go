// Package loan implements the loan approval scoring pipeline: encoding an
// applicant [Record] against a [Schema], scoring it with a fitted logistic
// [Model], mapping the probability to a [Decision], and explaining the model
// through per-feature odds ratios. Everything here is pure and safe to share
// across goroutines once built; see [Predictor].
package loan
