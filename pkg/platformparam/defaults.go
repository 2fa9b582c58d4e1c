package platformparam

// Names of the platform parameters shipped with the service.
const (
	ParamDummyFeatureFlag                  = "dummy_feature_flag_for_e2e_tests"
	ParamPromoBarEnabled                   = "promo_bar_enabled"
	ParamPromoBarMessage                   = "promo_bar_message"
	ParamAlwaysAskLearnersForAnswerDetails = "always_ask_learners_for_answer_details"
	ParamMaxTagsPerBlogPost                = "max_number_of_tags_assigned_to_blog_post"
	ParamHighBounceRateThreshold           = "high_bounce_rate_task_state_bounce_rate_creation_threshold"
	ParamContributorDashboardEnabled       = "contributor_dashboard_accomplishments"
	ParamEnableAdminNotifications          = "enable_admin_notifications_for_reviewer_shortage"
)

// Defaults returns the built-in parameter definitions in display order.
func Defaults() []Parameter {
	return []Parameter{
		{
			Name:         ParamDummyFeatureFlag,
			Description:  "This is a dummy feature flag for the e2e tests.",
			DataType:     DataTypeBool,
			DefaultValue: false,
		},
		{
			Name:         ParamPromoBarEnabled,
			Description:  "Whether the promo bar should be enabled for all users",
			DataType:     DataTypeBool,
			DefaultValue: false,
		},
		{
			Name:         ParamPromoBarMessage,
			Description:  "The message to show to all users if the promo bar is enabled",
			DataType:     DataTypeString,
			DefaultValue: "",
		},
		{
			Name:         ParamAlwaysAskLearnersForAnswerDetails,
			Description:  "Always ask learners for answer details. For testing -- do not use",
			DataType:     DataTypeBool,
			DefaultValue: false,
		},
		{
			Name:         ParamMaxTagsPerBlogPost,
			Description:  "The maximum number of tags that can be selected to categorize the blog post",
			DataType:     DataTypeNumber,
			DefaultValue: 10.0,
		},
		{
			Name:         ParamHighBounceRateThreshold,
			Description:  "The bounce-rate a state must exceed to create a new improvements task.",
			DataType:     DataTypeNumber,
			DefaultValue: 0.2,
		},
		{
			Name:         ParamContributorDashboardEnabled,
			Description:  "Enables contributor dashboard accomplishments.",
			DataType:     DataTypeBool,
			DefaultValue: false,
		},
		{
			Name:         ParamEnableAdminNotifications,
			Description:  "Notify admins of reviewer shortages on the contributor dashboard.",
			DataType:     DataTypeBool,
			DefaultValue: false,
		},
	}
}
