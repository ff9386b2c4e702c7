package dashboard

const (
	Title = "Breast Cancer Predictor"

	Description = "Please connect this app to your cytology lab to help diagnose breast cancer from your tissue sample. " +
		"This app predicts using a machine learning model whether a breast mass is benign or malignant based on the " +
		"measurements it receives from your cytology lab. You can also update the measurements by hand using the sliders in the sidebar."

	Disclaimer = "This app can assist medical professionals in making a diagnosis, but should not be used as a substitute for a professional diagnosis."
)
